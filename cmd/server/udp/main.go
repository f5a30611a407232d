// A small UDP collector for exercising the UDP output. Received
// datagrams are decoded as events and summarized.
package main

import (
	"flag"
	"fmt"
	"net"
	"time"

	"github.com/logforge/logforge/event"
)

const (
	readTimeout = 30 * time.Second

	// Large enough for a single encoded event
	bufferSize = 64 * 1024
)

func main() {
	listenAddr := flag.String("addr", "localhost:5000", "listen address")
	flag.Parse()

	addr, err := net.ResolveUDPAddr("udp", *listenAddr)
	if err != nil {
		fmt.Printf("Failed to resolve UDP address: %v\n", err)
		return
	}

	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		fmt.Printf("Failed to start UDP collector: %v\n", err)
		return
	}
	defer conn.Close()

	fmt.Printf("UDP collector listening on %s\n", *listenAddr)

	buffer := make([]byte, bufferSize)

	for {
		_ = conn.SetReadDeadline(time.Now().Add(readTimeout))

		n, clientAddr, err := conn.ReadFromUDP(buffer)
		if err != nil {
			fmt.Printf("UDP read error: %v\n", err)
			continue
		}

		ev, err := event.Decode(buffer[:n])
		if err != nil {
			fmt.Printf("Skipping undecodable datagram from %s: %v\n", clientAddr, err)
			continue
		}

		fmt.Printf("received event from %s: id=%s source=%s category=%s level=%s\n",
			clientAddr, ev.ID, ev.Source, ev.Category, ev.Level)
	}
}
