package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/ashureev/voicecall/internal/domain"
)

func TestDateTimeBlock(t *testing.T) {
	loc, label := LoadLocation("Asia/Kolkata")
	now := time.Date(2025, 12, 31, 18, 45, 0, 0, time.UTC)

	block := DateTimeBlock(now, loc, label)

	assert.Contains(t, block, "- **Current Date**: January 01, 2026 (Thursday)\n")
	assert.Contains(t, block, "- **Current Date (YYYY-MM-DD format)**: 2026-01-01\n")
	assert.Contains(t, block, "- **Current Time**: 00:15 (Asia/Kolkata (IST))\n")
	assert.Contains(t, block, "- **Tomorrow's Date (YYYY-MM-DD format)**: 2026-01-02\n")
}

func TestLoadLocation_FallsBackToFixedIST(t *testing.T) {
	loc, label := LoadLocation("Not/AZone")
	assert.Equal(t, "IST (UTC+5:30)", label)

	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	_, offset := now.In(loc).Zone()
	assert.Equal(t, 5*3600+1800, offset)
	assert.Contains(t, DateTimeBlock(now, loc, label), "- **Current Time**: 05:30 (IST (UTC+5:30))\n")
}

func TestSystemInstruction(t *testing.T) {
	got := SystemInstruction("BASE", "\n\nDATE", "\n\nRAILS")
	assert.Equal(t, "BASE\n\nDATE\n\nRAILS", got)
}

func TestTranscriptRender(t *testing.T) {
	var tr Transcript
	tr.Append(domain.RoleSystem, "prompt")
	tr.Append(domain.RoleUser, "Hello")
	tr.Append(domain.RoleAssistant, "")
	tr.Append(domain.RoleAssistant, "Hi, what's your name?")
	tr.Append("tool", "{}")

	assert.Equal(t, "User: Hello\nMeera (Agent): Hi, what's your name?", tr.Render("Meera"))
	assert.Len(t, tr.Turns(), 5)

	var empty Transcript
	assert.Equal(t, "", empty.Render("Natalie"))
}
