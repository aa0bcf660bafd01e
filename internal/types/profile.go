package types

// Profile names one of the isolated browser identities. Each profile runs
// its own browser process with its own debug port and tab universe.
type Profile string

const (
	ProfilePersonal Profile = "personal"
	ProfileWork     Profile = "work"
)

// Profiles returns all known profiles in a fixed order.
func Profiles() []Profile {
	return []Profile{ProfilePersonal, ProfileWork}
}

// Valid reports whether p names a known profile.
func (p Profile) Valid() bool {
	return p == ProfilePersonal || p == ProfileWork
}

// OrDefault returns p, or the personal profile when p is empty.
func (p Profile) OrDefault() Profile {
	if p == "" {
		return ProfilePersonal
	}
	return p
}
