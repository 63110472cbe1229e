// Package main is a sample sensor client for exercising the relay: it
// handshakes with a fresh uid, streams synthetic readings, and prints
// the AVG broadcasts it gets back.
package main

import (
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/peppasd/fog-relay/internal/protocol"
)

const defaultRelayURL = "ws://localhost:3000/ws"

func main() {
	url := defaultRelayURL
	if len(os.Args) > 1 {
		url = os.Args[1]
	}

	interval := 5 * time.Second
	if v := os.Getenv("SENSOR_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			interval = d
		}
	}

	uid := uuid.NewString()
	fmt.Printf("Sensor %s\n", uid)
	fmt.Printf("Connecting to %s...\n", url)

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		fmt.Printf("Error: cannot reach relay: %v\n", err)
		os.Exit(1)
	}
	defer conn.Close()

	if err := sendFrame(conn, protocol.Handshake{UID: uid}); err != nil {
		fmt.Printf("Error: handshake failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("Connected. Press Ctrl+C to stop.")

	// Print broadcasts as they arrive.
	go func() {
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			frame, err := protocol.Decode(string(data))
			if err != nil {
				fmt.Printf("  ignoring malformed frame: %v\n", err)
				continue
			}
			if avg, ok := frame.(protocol.Average); ok {
				at := time.Unix(avg.Timestamp, 0).Format("15:04:05")
				fmt.Printf("[%s] network average: %.2f\n", at, avg.Value)
			}
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Readings drift around a baseline like a slow temperature sensor.
	value := 20.0

	for {
		select {
		case <-ticker.C:
			value += rand.Float64()*2 - 1
			reading := protocol.Sensor{
				UID:       uid,
				Timestamp: time.Now().Unix(),
				Value:     value,
			}
			if err := sendFrame(conn, reading); err != nil {
				fmt.Printf("Error: send failed: %v\n", err)
				os.Exit(1)
			}
			fmt.Printf("[%s] sent reading: %.2f\n", time.Now().Format("15:04:05"), value)

		case <-sigChan:
			fmt.Println("\nDisconnecting...")
			_ = sendFrame(conn, protocol.Disconnect{UID: uid})
			return
		}
	}
}

func sendFrame(conn *websocket.Conn, frame protocol.Frame) error {
	return conn.WriteMessage(websocket.TextMessage, []byte(frame.Encode()))
}
