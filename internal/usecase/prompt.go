package usecase

import (
	"fmt"
	"strings"

	"github.com/LucasBuchC/takeone-ai/internal/domain/model"
	"github.com/LucasBuchC/takeone-ai/internal/domain/ports/adapter"
)

const DefaultTone = "casual and informative"

const scriptwriterPersona = `You are a professional scriptwriter specialized in social media videos.
Your job is to write structured, engaging scripts optimized for audience retention.`

const scriptTemplate = `Write a professional script for a %s video of roughly %d seconds.

Desired tone: %s

Brief and requirements:
%s

Structure the script as follows:

## HOOK (3-5 seconds)
[An opening that grabs attention immediately]

## INTRODUCTION (10-15 seconds)
[Present the topic and promise the value the viewer will get]

## DEVELOPMENT
[The main points, organized clearly]

## CONCLUSION & CTA (5-10 seconds)
[A quick recap and a clear call to action]

Use natural, direct language adapted to %s.
Include framing and transition tips where relevant.`

func scriptMessages(vt model.VideoType, duration int, tone, brief string) []adapter.Message {
	if strings.TrimSpace(tone) == "" {
		tone = DefaultTone
	}
	user := fmt.Sprintf(scriptTemplate, vt, duration, tone, strings.TrimSpace(brief), vt)
	return []adapter.Message{
		{Role: "system", Content: scriptwriterPersona},
		{Role: "user", Content: user},
	}
}
