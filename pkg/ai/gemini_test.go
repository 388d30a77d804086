package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestGeminiGeneratorSendsSystemInstruction(t *testing.T) {
	var payload struct {
		Contents []struct {
			Role  string `json:"role"`
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"contents"`
		SystemInstruction struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"systemInstruction"`
		GenerationConfig struct {
			MaxOutputTokens int     `json:"maxOutputTokens"`
			Temperature     float64 `json:"temperature"`
		} `json:"generationConfig"`
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.True(t, strings.HasSuffix(r.URL.Path, "models/gemini-1.5-pro:generateContent"), r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"role":"model","parts":[{"text":" Solid argument. "}]}}]}`))
	}))
	t.Cleanup(server.Close)

	gen, err := NewGeminiGenerator(GeminiConfig{APIKey: "key", BaseURL: server.URL + "/", Logger: zerolog.Nop()})
	require.NoError(t, err)

	feedback, err := gen.Generate(context.Background(), GenerationRequest{
		SystemContent:   "System: rubric\n",
		UserContent:     "Grade\nStudent's Submission:\ntext\n",
		Model:           "gemini-1.5-pro",
		Temperature:     0.5,
		MaxOutputTokens: 900,
	})
	require.NoError(t, err)
	require.Equal(t, "Solid argument.", feedback)

	require.Len(t, payload.Contents, 1)
	require.Equal(t, "Grade\nStudent's Submission:\ntext\n", payload.Contents[0].Parts[0].Text)
	require.Equal(t, "System: rubric\n", payload.SystemInstruction.Parts[0].Text)
	require.Equal(t, 900, payload.GenerationConfig.MaxOutputTokens)
	require.InDelta(t, 0.5, payload.GenerationConfig.Temperature, 0.0001)
}

func TestGeminiGeneratorWrapsErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"code":401,"message":"API key not valid","status":"UNAUTHENTICATED"}}`))
	}))
	t.Cleanup(server.Close)

	gen, err := NewGeminiGenerator(GeminiConfig{APIKey: "bad", BaseURL: server.URL + "/", Logger: zerolog.Nop()})
	require.NoError(t, err)

	_, err = gen.Generate(context.Background(), GenerationRequest{Model: "gemini-1.5-pro", UserContent: "x"})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, ProviderGemini, apiErr.Provider)
	require.Contains(t, err.Error(), "API key not valid")
}

func TestNewGeminiGeneratorRequiresKey(t *testing.T) {
	_, err := NewGeminiGenerator(GeminiConfig{})
	require.Error(t, err)
}
