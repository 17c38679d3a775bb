package model

import "strings"

type Personality string

const (
	PersonalityCalmAnchor            Personality = "calm-anchor"
	PersonalityFriendlyExplainer     Personality = "friendly-explainer"
	PersonalityInvestigativeReporter Personality = "investigative-reporter"
	PersonalityYouthfulTrendspotter  Personality = "youthful-trendspotter"
	PersonalityGlobalCorrespondent   Personality = "global-correspondent"
	PersonalityAIAnalyst             Personality = "ai-analyst"
)

type ContentLength string

const (
	ContentLengthBrief         ContentLength = "brief"
	ContentLengthConcise       ContentLength = "concise"
	ContentLengthDetailed      ContentLength = "detailed"
	ContentLengthComprehensive ContentLength = "comprehensive"
)

const (
	DefaultPersonality   = PersonalityFriendlyExplainer
	DefaultContentLength = ContentLengthBrief
)

// Preferences is the normalized subset of a user's profile sent with every workflow.
type Preferences struct {
	Personality   Personality   `json:"news_personality"`
	Topics        []string      `json:"favourite_topics"`
	ContentLength ContentLength `json:"content_length"`
}

func DefaultPreferences() Preferences {
	return Preferences{
		Personality:   DefaultPersonality,
		Topics:        []string{},
		ContentLength: DefaultContentLength,
	}
}

// NormalizePreferences maps stored values onto the pipeline's enums. Unknown
// values fall back to defaults; topics are trimmed and de-duplicated.
func NormalizePreferences(personality, contentLength string, topics []string) Preferences {
	p := DefaultPreferences()

	switch v := Personality(strings.ToLower(strings.TrimSpace(personality))); v {
	case PersonalityCalmAnchor, PersonalityFriendlyExplainer, PersonalityInvestigativeReporter,
		PersonalityYouthfulTrendspotter, PersonalityGlobalCorrespondent, PersonalityAIAnalyst:
		p.Personality = v
	}

	switch v := ContentLength(strings.ToLower(strings.TrimSpace(contentLength))); v {
	case ContentLengthBrief, ContentLengthConcise, ContentLengthDetailed, ContentLengthComprehensive:
		p.ContentLength = v
	}

	seen := make(map[string]struct{}, len(topics))
	for _, t := range topics {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		key := strings.ToLower(t)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		p.Topics = append(p.Topics, t)
	}

	return p
}
