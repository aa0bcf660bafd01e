// tab_send delivers a single focus-or-open request to a running tab_server
// over its one-shot control channel.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net"
	"os"
	"time"

	"github.com/dgnsrekt/tab_relay/internal/types"
)

func main() {
	addr := flag.String("addr", "127.0.0.1:8765", "tab_server control channel address")
	profile := flag.String("profile", "", "browser profile (personal or work; default personal)")
	timeout := flag.Duration("timeout", 10*time.Second, "request timeout")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: %s [flags] <url>\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}
	url := flag.Arg(0)

	ack, err := send(*addr, *timeout, types.FocusCommand{URL: url, Profile: types.Profile(*profile)})
	if err != nil {
		fmt.Fprintf(os.Stderr, "tab_send: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(ack)
}

func send(addr string, timeout time.Duration, cmd types.FocusCommand) (string, error) {
	payload, err := json.Marshal(cmd)
	if err != nil {
		return "", fmt.Errorf("encode request: %w", err)
	}

	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return "", fmt.Errorf("connect %s: %w", addr, err)
	}
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(timeout))

	if _, err := conn.Write(payload); err != nil {
		return "", fmt.Errorf("send request: %w", err)
	}
	reply, err := io.ReadAll(conn)
	if err != nil {
		return "", fmt.Errorf("read ack: %w", err)
	}
	return string(reply), nil
}
