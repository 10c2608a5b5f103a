package main

import (
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strconv"
)

func usage() {
	log.Fatalf("Usage: %s <layer> <z> <x> <y>", os.Args[0])
}

func mustAtoi(name, value string) int {
	parsed, err := strconv.Atoi(value)
	if err != nil {
		log.Fatalf("Invalid %s %q: %v", name, value, err)
	}
	return parsed
}

func main() {
	baseURL := os.Getenv("TILELIGHT_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}

	if len(os.Args) < 5 {
		usage()
	}

	layer := os.Args[1]
	if layer == "" {
		usage()
	}
	z := mustAtoi("zoom level", os.Args[2])
	x := mustAtoi("x coordinate", os.Args[3])
	y := mustAtoi("y coordinate", os.Args[4])

	url := fmt.Sprintf("%s/tile/%s/%d/%d/%d", baseURL, layer, z, x, y)

	resp, err := http.Get(url)
	if err != nil {
		log.Fatalf("Failed making request to %s: %v", url, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Fatalf("Failed reading response body: %v", err)
	}

	if resp.StatusCode != http.StatusOK {
		log.Fatalf("Server returned non-200 status code: %d - %s", resp.StatusCode, string(data))
	}

	_, err = os.Stdout.Write(data)
	if err != nil {
		log.Fatalf("Failed writing tile to stdout: %v", err)
	}
}
