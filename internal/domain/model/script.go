package model

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/LucasBuchC/takeone-ai/internal/domain"
)

// GenerationParams is stored alongside each script as JSON.
type GenerationParams struct {
	TokensUsed     int     `json:"tokens_used"`
	GenerationTime float64 `json:"generation_time"`
	Model          string  `json:"model"`
	VideoType      string  `json:"video_type"`
	Duration       int     `json:"duration"`
	Tone           string  `json:"tone"`
}

// Script is one immutable, versioned generation output. Version is assigned
// by the repository at insert time.
type Script struct {
	ID        string
	ProjectID string
	Version   int
	Content   string
	Prompt    string
	Params    GenerationParams
	CreatedAt time.Time
}

func NewScript(projectID, content, prompt string, params GenerationParams) (*Script, error) {
	if projectID == "" || strings.TrimSpace(content) == "" {
		return nil, domain.ErrInvalidArgument
	}
	return &Script{
		ID:        uuid.NewString(),
		ProjectID: projectID,
		Content:   content,
		Prompt:    prompt,
		Params:    params,
		CreatedAt: time.Now(),
	}, nil
}

// EstimateTokens approximates output tokens as ceil(chars/4).
func EstimateTokens(content string) int {
	n := utf8.RuneCountInString(content)
	return (n + 3) / 4
}
