package main

import (
	"bufio"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/exec"

	"github.com/gorilla/websocket"
)

// ws_bridge exposes the pilot binary's stdio to a WebSocket client. Each
// connection spawns a fresh agent subprocess; text frames go to its stdin
// and every line it prints (JSON events, with --json) comes back as a frame.

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func main() {
	cmdArgs := os.Args[1:]
	if len(cmdArgs) == 0 {
		cmdArgs = []string{"pilot", "--json", "--interactive"}
	}
	http.HandleFunc("/ws", handleWS(cmdArgs))

	fmt.Println("WebSocket bridge running on ws://localhost:8080/ws")
	log.Fatal(http.ListenAndServe(":8080", nil))
}

func handleWS(cmdArgs []string) func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Println("Upgrade error:", err)
			return
		}
		defer conn.Close()

		cmd := exec.Command(cmdArgs[0], cmdArgs[1:]...)

		stdin, err := cmd.StdinPipe()
		if err != nil {
			log.Println("StdinPipe error:", err)
			return
		}
		stdout, err := cmd.StdoutPipe()
		if err != nil {
			log.Println("StdoutPipe error:", err)
			return
		}
		cmd.Stderr = os.Stderr

		if err := cmd.Start(); err != nil {
			log.Println("Start error:", err)
			return
		}
		defer func() {
			stdin.Close()
			cmd.Process.Kill()
			cmd.Wait()
		}()

		// Subprocess stdout -> WebSocket, one frame per line.
		go func() {
			scanner := bufio.NewScanner(stdout)
			scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
			for scanner.Scan() {
				if err := conn.WriteMessage(websocket.TextMessage, scanner.Bytes()); err != nil {
					return
				}
			}
		}()

		// WebSocket -> subprocess stdin.
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if _, err := stdin.Write(append(msg, '\n')); err != nil {
				return
			}
		}
	}
}
