package model

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/LucasBuchC/takeone-ai/internal/domain"
)

type VideoType string

const (
	VideoYouTube     VideoType = "youtube"
	VideoTikTok      VideoType = "tiktok"
	VideoInstagram   VideoType = "instagram"
	VideoShorts      VideoType = "shorts"
	VideoEducational VideoType = "educational"
)

func (v VideoType) Valid() bool {
	switch v {
	case VideoYouTube, VideoTikTok, VideoInstagram, VideoShorts, VideoEducational:
		return true
	}
	return false
}

// MaxDurationSeconds bounds the target duration of a project.
const MaxDurationSeconds = 3600

// Project owns zero or more generated scripts.
type Project struct {
	ID         string
	UserID     string
	Title      string
	VideoType  VideoType
	Duration   int
	LastPrompt string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func NewProject(userID, title string, videoType VideoType, duration int, lastPrompt string) (*Project, error) {
	title = strings.TrimSpace(title)
	if userID == "" || title == "" {
		return nil, domain.ErrInvalidArgument
	}
	if !videoType.Valid() {
		return nil, domain.ErrInvalidArgument
	}
	if duration <= 0 || duration > MaxDurationSeconds {
		return nil, domain.ErrInvalidArgument
	}
	now := time.Now()
	return &Project{
		ID:         uuid.NewString(),
		UserID:     userID,
		Title:      title,
		VideoType:  videoType,
		Duration:   duration,
		LastPrompt: strings.TrimSpace(lastPrompt),
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

// ProjectSummary is a project row as listed on the dashboard.
type ProjectSummary struct {
	Project
	ScriptCount int
}
