package report

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
)

// Poster is the outbound messaging surface the dispatcher posts through.
type Poster interface {
	PostReport(ctx context.Context, channelID, text string) (string, error)
	UploadImage(ctx context.Context, channelID, path, title string) error
}

// Dispatcher delivers a rendered report to the channel.
type Dispatcher struct {
	poster Poster
	dryRun bool
}

// NewDispatcher creates a dispatcher. With dryRun set, Dispatch formats and
// logs the report without contacting the channel API.
func NewDispatcher(poster Poster, dryRun bool) *Dispatcher {
	return &Dispatcher{poster: poster, dryRun: dryRun}
}

// Dispatch posts the report text, then uploads each image artifact. The
// report counts as delivered once the text is posted: a failed image upload
// is logged as a warning, not escalated.
func (d *Dispatcher) Dispatch(ctx context.Context, channelID, text string, artifacts []Artifact) error {
	if d.dryRun {
		logrus.WithFields(logrus.Fields{
			"channel":   channelID,
			"artifacts": len(artifacts),
		}).Info("Dry run, skipping post")
		fmt.Println(text)
		return nil
	}

	ts, err := d.poster.PostReport(ctx, channelID, text)
	if err != nil {
		return fmt.Errorf("dispatch report: %w", err)
	}
	log := logrus.WithFields(logrus.Fields{"channel": channelID, "ts": ts})
	log.Info("Report posted")

	for _, a := range artifacts {
		if err := d.poster.UploadImage(ctx, channelID, a.Path, a.Title); err != nil {
			log.WithError(err).WithField("artifact", a.Path).
				Warn("Image upload failed, report already delivered")
		}
	}

	return nil
}
