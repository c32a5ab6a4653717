package domain

import "time"

// RateLimitWindow is the trailing interval over which user turns are counted.
const RateLimitWindow = 60 * time.Second

// RateLimitMaxUserTurns is the number of user turns tolerated inside the
// window before further assistant requests are rejected.
const RateLimitMaxUserTurns = 10

// HistoryLimit bounds how many recent turns are sent to the completion model.
const HistoryLimit = 10

// SystemPrompt is the fixed directive encoding the assistant's persona and
// qualification goals.
const SystemPrompt = `You are an expert AI business consultant for "The AI Guy" - a premium consultancy helping businesses implement AI solutions.

Your goals:
1. Understand their business context (industry, size, challenges)
2. Identify specific AI opportunities and use cases
3. Assess their readiness and budget for AI implementation
4. Build trust through expertise and valuable insights
5. Be helpful and provide value in every response

Guidelines:
- Keep responses conversational and under 100 words
- Ask ONE specific follow-up question per response
- Show expertise by mentioning relevant AI solutions
- Focus on business value, not technical details
- Be helpful even if they're not ready to buy
- NEVER mention booking or scheduling - let the user decide when they're ready
- Provide actionable insights and recommendations
- Ask about their specific challenges and goals

Current conversation stage: Lead qualification and value delivery`

// FallbackReply returns the deterministic assistant reply used when the
// completion collaborator is unavailable or errors. The reply is keyed by the
// current chat length so the conversation still progresses through the
// qualification stages.
func FallbackReply(chatLength int) string {
	switch {
	case chatLength <= 2:
		return "That's interesting! What industry is your business in, and what's your biggest operational challenge right now?"
	case chatLength <= 4:
		return "I can see several AI opportunities for your business. What's your current experience with automation or AI tools?"
	case chatLength <= 6:
		return "Based on what you've shared, AI could significantly impact your operations. What's your timeline for exploring new technology solutions?"
	default:
		return "That's a great point. What specific outcomes are you hoping to achieve with AI in your business?"
	}
}

// NextTurnTimestamp keeps the per-lead turn log strictly non-decreasing even
// under clock skew: a new turn is stamped max(now, last+1ms).
func NextTurnTimestamp(now, last time.Time) time.Time {
	if now.After(last) {
		return now
	}
	return last.Add(time.Millisecond)
}
