package domain

// Span attribute keys set by the engine on task spans.
const (
	// AttrTask marks a span as a task span and holds the task key.
	AttrTask = "lyric.task"
	// AttrTaskHash holds the task hash once it is known.
	AttrTaskHash = "lyric.hash"
	// AttrCached is true when a task was satisfied from an existing trace.
	AttrCached = "lyric.cached"
	// AttrGeneration holds the build generation a span belongs to.
	AttrGeneration = "lyric.generation"
)
