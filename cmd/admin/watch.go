package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"regionscan.dev/internal/transport/progress"
)

// watchCmd follows the progress stream of a running scanner until it reports DONE.
func watchCmd(args []string) {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	addr := fs.String("addr", "127.0.0.1:8095", "scanner progress address")
	raw := fs.Bool("raw", false, "print messages as received")
	_ = fs.Parse(args)

	url := "ws://" + strings.TrimSpace(*addr) + progress.Path
	dialer := websocket.Dialer{HandshakeTimeout: 5 * time.Second}
	conn, _, err := dialer.Dial(url, nil)
	if err != nil {
		fmt.Fprintln(os.Stderr, "dial:", err)
		os.Exit(1)
	}
	defer conn.Close()

	for {
		_, b, err := conn.ReadMessage()
		if err != nil {
			fmt.Fprintln(os.Stderr, "read:", err)
			os.Exit(1)
		}
		if *raw {
			fmt.Println(string(b))
		}
		var head struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(b, &head); err != nil {
			continue
		}
		switch head.Type {
		case progress.TypeHello:
			var m progress.HelloMsg
			_ = json.Unmarshal(b, &m)
			if !*raw {
				fmt.Printf("run %s dims=%s current=%s %d/%d\n", m.RunID, strings.Join(m.Dims, ","), m.Current, m.Done, m.Total)
			}
		case progress.TypeDimension:
			var m progress.DimensionMsg
			_ = json.Unmarshal(b, &m)
			if !*raw {
				if m.Phase == "start" {
					fmt.Printf("%s: scanning %d regions\n", m.Dim, m.Total)
				} else {
					fmt.Printf("%s: %s chunks=%d %s\n", m.Dim, m.Outcome, m.Chunks, m.Error)
				}
			}
		case progress.TypeRegion:
			var m progress.RegionMsg
			_ = json.Unmarshal(b, &m)
			if !*raw {
				fmt.Printf("%s (%d,%d) found=%v chunks=%d [%d/%d]\n", m.Dimension, m.X, m.Z, m.Found, m.ChunksCounted, m.Done, m.Total)
			}
		case progress.TypeDone:
			var m progress.DoneMsg
			_ = json.Unmarshal(b, &m)
			if !*raw {
				fmt.Printf("done: %s\n", m.Status)
			}
			if m.Status != "ok" {
				os.Exit(1)
			}
			return
		}
	}
}
