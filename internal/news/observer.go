package news

import "sjsage522/newsworker/logger"

// Observer receives progress for every unit of work in a run
type Observer interface {
	PageCollected(engine string, page, found, fresh int)
	SourceDone(engine string, discovered int)
	ArticleEnriched(url string, bodyPages, comments int)
	ArticleFailed(url string, err error)
	ChunkWritten(sheet string, chunk, rows int)
}

// NopObserver discards progress
type NopObserver struct{}

func (NopObserver) PageCollected(string, int, int, int) {}
func (NopObserver) SourceDone(string, int)              {}
func (NopObserver) ArticleEnriched(string, int, int)    {}
func (NopObserver) ArticleFailed(string, error)         {}
func (NopObserver) ChunkWritten(string, int, int)       {}

// LogObserver reports progress through the structured logger
type LogObserver struct{}

func (LogObserver) PageCollected(engine string, page, found, fresh int) {
	logger.ForSource(engine).Debug().
		Int("page", page).
		Int("found", found).
		Int("fresh", fresh).
		Msg("List page collected")
}

func (LogObserver) SourceDone(engine string, discovered int) {
	logger.ForSource(engine).Info().
		Int("discovered", discovered).
		Msg("Source crawl finished")
}

func (LogObserver) ArticleEnriched(url string, bodyPages, comments int) {
	logger.ForEnricher().Debug().
		Str("url", url).
		Int("body_pages", bodyPages).
		Int("comments", comments).
		Msg("Article enriched")
}

func (LogObserver) ArticleFailed(url string, err error) {
	logger.ForEnricher().Warn().
		Err(err).
		Str("url", url).
		Msg("Article degraded")
}

func (LogObserver) ChunkWritten(sheet string, chunk, rows int) {
	logger.ForSync().Info().
		Str("sheet", sheet).
		Int("chunk", chunk).
		Int("rows", rows).
		Msg("Chunk written")
}

// OrNop returns o, or a NopObserver when o is nil
func OrNop(o Observer) Observer {
	if o == nil {
		return NopObserver{}
	}
	return o
}
