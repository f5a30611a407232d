// A small TCP collector for exercising the TCP output. Received events
// are decoded and summarized, and can be appended to an archive file
// that the replay scheduler can play back.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"net"
	"os"
	"sync"
	"time"

	"github.com/logforge/logforge/event"
)

const readTimeout = 30 * time.Second

func main() {
	addr := flag.String("addr", "localhost:5000", "listen address")
	out := flag.String("out", "", "optional archive file to append received events to")
	flag.Parse()

	var archive *archiveWriter
	if *out != "" {
		var err error
		archive, err = newArchiveWriter(*out)
		if err != nil {
			fmt.Printf("Failed to open archive file: %v\n", err)
			return
		}
		defer archive.Close()
	}

	listener, err := net.Listen("tcp", *addr)
	if err != nil {
		fmt.Printf("Failed to start TCP collector: %v\n", err)
		return
	}
	defer listener.Close()

	fmt.Printf("TCP collector listening on %s\n", *addr)

	for {
		conn, err := listener.Accept()
		if err != nil {
			fmt.Printf("Failed to accept connection: %v\n", err)
			continue
		}

		go handleConnection(conn, archive)
	}
}

func handleConnection(conn net.Conn, archive *archiveWriter) {
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(readTimeout))

	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		line := scanner.Bytes()

		ev, err := event.Decode(line)
		if err != nil {
			fmt.Printf("Skipping undecodable line: %v\n", err)
			continue
		}

		fmt.Printf("received event: id=%s source=%s category=%s level=%s\n",
			ev.ID, ev.Source, ev.Category, ev.Level)

		if archive != nil {
			if err := archive.Append(line); err != nil {
				fmt.Printf("Failed to archive event: %v\n", err)
			}
		}
	}

	if err := scanner.Err(); err != nil {
		fmt.Printf("TCP read error: %v\n", err)
	}
}

// archiveWriter appends newline-delimited event JSON to a file,
// serialized across connections.
type archiveWriter struct {
	mu   sync.Mutex
	file *os.File
}

func newArchiveWriter(path string) (*archiveWriter, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600) // #nosec G304, user defines archive path via a flag
	if err != nil {
		return nil, err
	}
	return &archiveWriter{file: file}, nil
}

func (a *archiveWriter) Append(line []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, err := a.file.Write(line); err != nil {
		return err
	}
	_, err := a.file.Write([]byte{'\n'})
	return err
}

func (a *archiveWriter) Close() {
	_ = a.file.Close()
}
