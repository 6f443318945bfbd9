package sonarr

import (
	"errors"

	"github.com/goccy/go-json"
	"golift.io/starr/sonarr"

	"github.com/vmunix/prefetcharr/internal/library"
)

var errMissingID = errors.New("record has no id")

// seriesRecord is a listed series plus the fields starr does not model.
type seriesRecord struct {
	*sonarr.Series
	MonitorNewItems string
}

func decodeSeries(raw json.RawMessage) (seriesRecord, error) {
	var s sonarr.Series
	if err := json.Unmarshal(raw, &s); err != nil {
		return seriesRecord{}, err
	}
	if s.ID == 0 {
		return seriesRecord{}, errMissingID
	}
	var extra struct {
		MonitorNewItems string `json:"monitorNewItems"`
	}
	if err := json.Unmarshal(raw, &extra); err != nil {
		return seriesRecord{}, err
	}
	return seriesRecord{Series: &s, MonitorNewItems: extra.MonitorNewItems}, nil
}

func (s seriesRecord) tagIDs() []int64 {
	ids := make([]int64, len(s.Tags))
	for i, id := range s.Tags {
		ids[i] = int64(id)
	}
	return ids
}

func (s seriesRecord) toLibrary(labels []string) *library.Series {
	out := &library.Series{
		ID:              s.ID,
		Title:           s.Title,
		TVDBID:          s.TvdbID,
		Monitored:       s.Monitored,
		MonitorNewItems: s.MonitorNewItems,
		Tags:            labels,
		Seasons:         make([]library.Season, 0, len(s.Seasons)),
	}
	for _, season := range s.Seasons {
		if season == nil {
			continue
		}
		ls := library.Season{
			Number:    season.SeasonNumber,
			Monitored: season.Monitored,
		}
		if st := season.Statistics; st != nil {
			ls.StatisticsAvailable = true
			ls.EpisodeCount = st.TotalEpisodeCount
			ls.DownloadedCount = st.EpisodeFileCount
		}
		out.Seasons = append(out.Seasons, ls)
	}
	return out
}

func episodeToLibrary(e *sonarr.Episode) library.Episode {
	return library.Episode{
		ID:        e.ID,
		Season:    e.SeasonNumber,
		Number:    e.EpisodeNumber,
		HasFile:   e.HasFile,
		Monitored: e.Monitored,
	}
}

type episodeMonitorRequest struct {
	EpisodeIDs []int64 `json:"episodeIds"`
	Monitored  bool    `json:"monitored"`
}

type seasonSearchCommand struct {
	Name         string `json:"name"`
	SeriesID     int64  `json:"seriesId"`
	SeasonNumber int    `json:"seasonNumber"`
}

type commandResponse struct {
	ID int64 `json:"id"`
}
