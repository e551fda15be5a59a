// Command buckeuchrectl is a small admin CLI against a running
// buckeuchresrv: list games, create one, inspect one, and seat an AI.
// Grounded on cmd/pokerctl's subcommand-dispatch shape (global flags,
// flag.Arg(0) as the verb, flag.Usage listing every command), narrowed
// to the JSON lobby-admin API this module exposes over plain HTTP
// instead of a gRPC client stack — pokerctl's bisonrelay/gRPC transport
// plumbing has nothing to connect to here.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
)

var (
	serverURL   = flag.String("url", "http://127.0.0.1:8080", "Base URL of a running buckeuchresrv")
	hostID      = flag.String("host-id", "", "Player id to seat as host of a newly created game")
	displayName = flag.String("name", "", "Display name for -host-id")
	gameID      = flag.String("game-id", "", "Game id, required by get-game and seat-ai")
	difficulty  = flag.String("difficulty", "medium", "AI difficulty for seat-ai: easy, medium, hard, expert")
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [global flags] <command>\n", os.Args[0])
		fmt.Fprintln(os.Stderr, "Commands:")
		fmt.Fprintln(os.Stderr, "  games                     List live games (JSON)")
		fmt.Fprintln(os.Stderr, "  create-game               Create a game; prints its id")
		fmt.Fprintln(os.Stderr, "  get-game                  Print one game's public snapshot (-game-id)")
		fmt.Fprintln(os.Stderr, "  seat-ai                   Seat an AI at -game-id with -difficulty")
		fmt.Fprintln(os.Stderr, "  procstats                 Print server process diagnostics (JSON)")
		fmt.Fprintln(os.Stderr, "\nGlobal flags:")
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(2)
	}

	var err error
	switch flag.Arg(0) {
	case "games":
		err = cmdGames()
	case "create-game":
		err = cmdCreateGame()
	case "get-game":
		err = cmdGetGame()
	case "seat-ai":
		err = cmdSeatAI()
	case "procstats":
		err = cmdProcstats()
	default:
		flag.Usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func cmdGames() error {
	return getJSON("/api/games")
}

func cmdProcstats() error {
	return getJSON("/debug/procstats")
}

func cmdCreateGame() error {
	if *hostID == "" {
		return fmt.Errorf("-host-id is required")
	}
	body, err := json.Marshal(map[string]string{"hostId": *hostID, "displayName": *displayName})
	if err != nil {
		return err
	}
	resp, err := http.Post(*serverURL+"/api/games/create", "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return printResponse(resp)
}

func cmdGetGame() error {
	if *gameID == "" {
		return fmt.Errorf("-game-id is required")
	}
	return getJSON("/api/games/" + *gameID)
}

func cmdSeatAI() error {
	if *gameID == "" {
		return fmt.Errorf("-game-id is required")
	}
	body, err := json.Marshal(map[string]string{"difficulty": *difficulty})
	if err != nil {
		return err
	}
	resp, err := http.Post(*serverURL+"/api/games/"+*gameID+"/ai", "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return printResponse(resp)
}

func getJSON(path string) error {
	resp, err := http.Get(*serverURL + path)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return printResponse(resp)
}

func printResponse(resp *http.Response) error {
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("server returned %s: %s", resp.Status, string(raw))
	}
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, raw, "", "  "); err != nil {
		fmt.Println(string(raw))
		return nil
	}
	fmt.Println(pretty.String())
	return nil
}
