// Command mockengine is a local stand-in for the speech and translation
// HTTP engines, useful for end-to-end testing of the recorder without real
// providers.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"
)

type transcriptionResponse struct {
	Text     string  `json:"text"`
	Language string  `json:"language"`
	Duration float64 `json:"duration"`
}

type translationRequest struct {
	RequestID      string `json:"request_id"`
	Text           string `json:"text"`
	SourceLanguage string `json:"source_language"`
	TargetLanguage string `json:"target_language"`
}

type translationResponse struct {
	Text string `json:"text"`
}

var segmentCounter int

func transcribeHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := r.ParseMultipartForm(10 << 20); err != nil {
		http.Error(w, "Error parsing form", http.StatusBadRequest)
		return
	}

	requestID := r.FormValue("request_id")
	language := r.FormValue("language")

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "Error getting audio file", http.StatusBadRequest)
		return
	}
	defer file.Close()

	audioData, err := io.ReadAll(file)
	if err != nil {
		http.Error(w, "Error reading audio file", http.StatusInternalServerError)
		return
	}

	log.Printf("🎤 TRANSCRIPTION REQUEST:")
	log.Printf("    Request ID: %s", requestID)
	log.Printf("    Language: %s", language)
	log.Printf("    Filename: %s", header.Filename)
	log.Printf("    Audio Size: %d bytes", len(audioData))

	// Simulate processing time
	time.Sleep(200 * time.Millisecond)

	segmentCounter++
	response := transcriptionResponse{
		Text:     fmt.Sprintf("This is mock transcript number %d.", segmentCounter),
		Language: language,
		Duration: float64(len(audioData)-44) / 2 / 16000,
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)

	log.Printf("✅ TRANSCRIPTION RESPONSE SENT: '%s'", response.Text)
	log.Println("---")
}

func translateHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req translationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Error parsing JSON", http.StatusBadRequest)
		return
	}

	log.Printf("🌐 TRANSLATION REQUEST:")
	log.Printf("    Request ID: %s", req.RequestID)
	log.Printf("    %s -> %s", req.SourceLanguage, req.TargetLanguage)
	log.Printf("    Text: %s", req.Text)

	time.Sleep(100 * time.Millisecond)

	response := translationResponse{
		Text: fmt.Sprintf("[%s] %s", req.TargetLanguage, req.Text),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)

	log.Printf("✅ TRANSLATION RESPONSE SENT: '%s'", response.Text)
	log.Println("---")
}

func main() {
	port := flag.String("port", "8090", "Port to listen on")
	flag.Parse()

	http.HandleFunc("/transcribe", transcribeHandler)
	http.HandleFunc("/translate", translateHandler)

	addr := ":" + *port
	log.Printf("🚀 Mock Engine Server starting on %s", addr)
	log.Printf("📡 Transcription: http://localhost%s/transcribe", addr)
	log.Printf("📡 Translation: http://localhost%s/translate", addr)

	if err := http.ListenAndServe(addr, nil); err != nil {
		log.Fatal("Server failed to start:", err)
	}
}
