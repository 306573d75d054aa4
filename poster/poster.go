// Package poster republishes a random xkcd comic on a VK community wall.
package poster

import (
	"context"
	"math/rand"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/mlafeldt/xkcd-wall/archive"
	"github.com/mlafeldt/xkcd-wall/config"
	"github.com/mlafeldt/xkcd-wall/heartbeat"
	"github.com/mlafeldt/xkcd-wall/transport"
	"github.com/mlafeldt/xkcd-wall/vk"
	"github.com/mlafeldt/xkcd-wall/xkcd"
)

// ComicSource is where comics come from.
type ComicSource interface {
	LatestNum(ctx context.Context) (int, error)
	Comic(ctx context.Context, num int) (*xkcd.Comic, error)
	Download(ctx context.Context, imageURL, dst string) (int64, error)
}

// Wall is where comics are published.
type Wall interface {
	WallUploadServer(ctx context.Context) (*vk.UploadServer, error)
	UploadPhoto(ctx context.Context, uploadURL, path string) (*vk.UploadedPhoto, error)
	SaveWallPhoto(ctx context.Context, photo vk.UploadedPhoto) (*vk.SavedPhoto, error)
	PostToWall(ctx context.Context, photo vk.SavedPhoto, message string) (int64, error)
}

// Archiver keeps a copy of every downloaded strip.
type Archiver interface {
	Store(ctx context.Context, num int, path string) (string, error)
}

// Pinger reports a successful run to a monitor.
type Pinger interface {
	Ping(ctx context.Context) (string, error)
}

// Poster runs the pipeline. Archive and Heartbeat are optional.
type Poster struct {
	Comics    ComicSource
	Wall      Wall
	Archive   Archiver
	Heartbeat Pinger

	// Dir holds the downloaded image for the duration of a run.
	Dir string
	// Num selects a specific comic; 0 picks a random one.
	Num int
	// Intn returns a random number in [0, n). Defaults to math/rand.
	Intn func(n int) int

	Log zerolog.Logger
}

// Result describes a run that got as far as publishing. PostID is 0 if
// publishing failed.
type Result struct {
	Comic  *xkcd.Comic
	PostID int64
}

// New wires a Poster from cfg.
func New(cfg *config.Config, log zerolog.Logger) (*Poster, error) {
	comics := xkcd.NewClient()
	comics.BaseURL = cfg.XKCDBaseURL

	wall := vk.NewClient(cfg.Token, cfg.GroupID)
	wall.BaseURL = cfg.VKBaseURL
	wall.Version = cfg.APIVersion
	wall.FromGroup = cfg.FromGroup

	p := &Poster{
		Comics: comics,
		Wall:   wall,
		Dir:    cfg.WorkDir,
		Log:    log,
	}

	if cfg.ArchiveBucket != "" {
		a, err := archive.New(cfg.ArchiveBucket, cfg.ArchivePrefix)
		if err != nil {
			return nil, errors.Wrap(err, "archive")
		}
		p.Archive = a
	}
	if cfg.HeartbeatEndpoint != "" {
		p.Heartbeat = &heartbeat.Heartbeat{Endpoint: cfg.HeartbeatEndpoint}
	}

	return p, nil
}

// Run posts one comic. Errors while getting or downloading the comic are
// returned. Errors while publishing it are logged and swallowed. The
// downloaded file is removed in either case.
func (p *Poster) Run(ctx context.Context) (*Result, error) {
	comic, err := p.comic(ctx)
	if err != nil {
		return nil, err
	}
	log := p.Log.With().Int("num", comic.Num).Logger()
	log.Debug().Str("title", comic.Title).Str("image_url", comic.ImageURL).Msg("Picked comic")

	name, err := xkcd.FileName(comic.ImageURL)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(p.Dir, 0755); err != nil {
		return nil, err
	}
	path := filepath.Join(p.Dir, name)
	defer p.remove(path)

	n, err := p.Comics.Download(ctx, comic.ImageURL, path)
	if err != nil {
		return nil, err
	}
	log.Info().Str("path", path).Int64("bytes", n).Msg("Downloaded comic")

	if p.Archive != nil {
		location, err := p.Archive.Store(ctx, comic.Num, path)
		if err != nil {
			log.Warn().Err(err).Msg("Could not archive comic")
		} else {
			log.Info().Str("location", location).Msg("Archived comic")
		}
	}

	res := &Result{Comic: comic}

	postID, err := p.publish(ctx, log, comic, path)
	if err != nil {
		logPublishError(log, err)
		return res, nil
	}
	res.PostID = postID
	log.Info().Int64("post_id", postID).Msg("Posted comic")

	if p.Heartbeat != nil {
		if status, err := p.Heartbeat.Ping(ctx); err != nil {
			log.Warn().Err(err).Msg("Heartbeat failed")
		} else {
			log.Debug().Str("status", status).Msg("Heartbeat sent")
		}
	}

	return res, nil
}

func (p *Poster) comic(ctx context.Context) (*xkcd.Comic, error) {
	num := p.Num
	if num == 0 {
		latest, err := p.Comics.LatestNum(ctx)
		if err != nil {
			return nil, err
		}
		intn := p.Intn
		if intn == nil {
			intn = rand.Intn
		}
		num, err = xkcd.RandomNum(latest, intn)
		if err != nil {
			return nil, err
		}
	}
	return p.Comics.Comic(ctx, num)
}

func (p *Poster) publish(ctx context.Context, log zerolog.Logger, comic *xkcd.Comic, path string) (int64, error) {
	srv, err := p.Wall.WallUploadServer(ctx)
	if err != nil {
		return 0, err
	}
	log.Debug().Msg("Got upload server")

	uploaded, err := p.Wall.UploadPhoto(ctx, srv.UploadURL, path)
	if err != nil {
		return 0, err
	}

	saved, err := p.Wall.SaveWallPhoto(ctx, *uploaded)
	if err != nil {
		return 0, err
	}
	log.Debug().Str("attachment", saved.Attachment()).Msg("Saved photo")

	return p.Wall.PostToWall(ctx, *saved, comic.Alt)
}

func (p *Poster) remove(path string) {
	err := os.Remove(path)
	switch {
	case err == nil:
		p.Log.Info().Str("path", path).Msg("Removed comic")
	case !os.IsNotExist(err):
		p.Log.Error().Err(err).Str("path", path).Msg("Could not remove comic")
	}
}

func logPublishError(log zerolog.Logger, err error) {
	ev := log.Error().Err(err)

	var apiErr *vk.APIError
	var statusErr *transport.StatusError
	switch {
	case errors.As(err, &apiErr):
		ev = ev.Int("error_code", apiErr.Code)
		if apiErr.StatusCode != 0 {
			ev = ev.Int("status_code", apiErr.StatusCode)
		}
	case errors.As(err, &statusErr):
		ev = ev.Int("status_code", statusErr.StatusCode)
	}
	ev.Msg("Could not post comic")
}
