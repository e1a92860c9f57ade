package tui

type stage int

const (
	stageInput stage = iota
	stageWaiting
)

type entryKind int

const (
	entryQuestion entryKind = iota
	entryOutput
)

type transcriptEntry struct {
	Kind    entryKind
	Content string
}

const heroTagline = "Ask recent arXiv announcements anything."

const (
	minViewportWidth          = 40
	viewportHorizontalPadding = 4
	transcriptLimit           = 200
)

const composerPlaceholder = "Ask about recent papers, or type /help…"
