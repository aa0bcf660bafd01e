// Package api exposes the HTTP surface: the subscriber channel upgrade
// endpoint plus a small REST API for inspecting the server.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/dgnsrekt/tab_relay/internal/cdp"
	"github.com/dgnsrekt/tab_relay/internal/types"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Service answers the REST API's questions about the running server.
type Service interface {
	Profiles() []types.Profile
	ProfileTabs(ctx context.Context, profile types.Profile) ([]types.TabEntry, error)
	Status(ctx context.Context) types.StatusInfo
}

type healthOutput struct {
	Body struct {
		Status string `json:"status"`
	}
}

type profilesOutput struct {
	Body struct {
		Profiles []types.Profile `json:"profiles"`
	}
}

type profileTabsInput struct {
	Profile string `path:"profile" doc:"Profile name (personal or work)."`
}

type profileTabsOutput struct {
	Body struct {
		Profile types.Profile    `json:"profile"`
		Tabs    []types.TabEntry `json:"tabs"`
	}
}

type statusOutput struct {
	Body types.StatusInfo
}

// NewServer builds the HTTP handler. wsHandler serves the subscriber
// channel at /ws, outside the OpenAPI surface.
func NewServer(svc Service, wsHandler http.HandlerFunc) http.Handler {
	router := chi.NewMux()
	router.Use(middleware.RequestID)
	router.Use(logRequests)
	router.Use(middleware.Recoverer)

	cfg := huma.DefaultConfig("Tab Relay API", "1.0.0")
	api := humachi.New(router, cfg)

	router.Get("/ws", wsHandler)

	huma.Register(api, huma.Operation{OperationID: "health", Method: http.MethodGet, Path: "/health", Summary: "Health check", Tags: []string{"Health"}},
		func(ctx context.Context, input *struct{}) (*healthOutput, error) {
			out := &healthOutput{}
			out.Body.Status = "ok"
			return out, nil
		})

	huma.Register(api, huma.Operation{OperationID: "list-profiles", Method: http.MethodGet, Path: "/api/v1/profiles", Summary: "List browser profiles", Tags: []string{"Tabs"}},
		func(ctx context.Context, input *struct{}) (*profilesOutput, error) {
			out := &profilesOutput{}
			out.Body.Profiles = svc.Profiles()
			return out, nil
		})

	huma.Register(api, huma.Operation{OperationID: "list-profile-tabs", Method: http.MethodGet, Path: "/api/v1/profiles/{profile}/tabs", Summary: "List a profile's open tabs", Tags: []string{"Tabs"}},
		func(ctx context.Context, input *profileTabsInput) (*profileTabsOutput, error) {
			profile := types.Profile(input.Profile)
			tabs, err := svc.ProfileTabs(ctx, profile)
			if err != nil {
				return nil, mapErr(err)
			}
			out := &profileTabsOutput{}
			out.Body.Profile = profile
			out.Body.Tabs = tabs
			return out, nil
		})

	huma.Register(api, huma.Operation{OperationID: "status", Method: http.MethodGet, Path: "/api/v1/status", Summary: "Server status", Tags: []string{"Health"}},
		func(ctx context.Context, input *struct{}) (*statusOutput, error) {
			return &statusOutput{Body: svc.Status(ctx)}, nil
		})

	return router
}

func mapErr(err error) error {
	if err == nil {
		return nil
	}
	var coded *cdp.CodedError
	if errors.As(err, &coded) {
		switch coded.Code {
		case cdp.CodeValidation:
			return huma.Error400BadRequest(coded.Message)
		case cdp.CodeTargetMissing:
			return huma.Error404NotFound(coded.Message)
		case cdp.CodeCDPUnavailable:
			return huma.Error502BadGateway(coded.Message)
		default:
			return huma.Error500InternalServerError(fmt.Sprintf("%s: %s", coded.Code, coded.Message))
		}
	}
	return huma.Error500InternalServerError(err.Error())
}
