package webhook

// Event types sent by Radarr and Sonarr that the server acts on.
const (
	EventDownload = "Download"
	EventTest     = "Test"
)

// RadarrPayload is the subset of a Radarr webhook body that is read.
type RadarrPayload struct {
	EventType string           `json:"eventType" validate:"required"`
	MovieFile *RadarrMovieFile `json:"movieFile" validate:"required_if=EventType Download"`
}

// RadarrMovieFile describes the imported movie file.
type RadarrMovieFile struct {
	ID           int    `json:"id"`
	RelativePath string `json:"relativePath"`
	Path         string `json:"path" validate:"required"`
}

// SonarrPayload is the subset of a Sonarr webhook body that is read.
type SonarrPayload struct {
	EventType   string             `json:"eventType" validate:"required"`
	Series      *SonarrSeries      `json:"series" validate:"required_if=EventType Download"`
	EpisodeFile *SonarrEpisodeFile `json:"episodeFile" validate:"required_if=EventType Download"`
}

// SonarrSeries is the series the episode belongs to.
type SonarrSeries struct {
	Title string `json:"title"`
	Path  string `json:"path" validate:"required"`
}

// SonarrEpisodeFile is the imported episode, relative to the series folder.
type SonarrEpisodeFile struct {
	ID           int    `json:"id"`
	RelativePath string `json:"relativePath" validate:"required"`
}
