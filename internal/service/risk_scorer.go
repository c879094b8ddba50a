package service

import (
	"strings"

	"care-relay/internal/domain"
)

var highRiskExpressions = map[string]struct{}{
	"sad":       {},
	"angry":     {},
	"disgusted": {},
	"fearful":   {},
	"stressed":  {},
}

// ScoreEmotion clasifica una expresión facial en un nivel de riesgo con su explicación.
func ScoreEmotion(expression string) (domain.RiskLevel, string) {
	e := strings.ToLower(strings.TrimSpace(expression))
	if e == "" {
		return domain.RiskLow, "No emotion"
	}
	if _, ok := highRiskExpressions[e]; ok {
		return domain.RiskHigh, "Detected " + e
	}
	if e == "neutral" {
		return domain.RiskMedium, "Neutral expression"
	}
	return domain.RiskLow, "Detected " + e
}
