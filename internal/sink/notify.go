package sink

import (
	"context"
	"fmt"
	"strings"

	"sitesight/internal/pipeline"
)

// Publisher is satisfied by *aws.SNSClient.
type Publisher interface {
	PublishMessage(ctx context.Context, topicARN, subject, message string) (string, error)
}

// Mailer is satisfied by *aws.SESClient.
type Mailer interface {
	SendText(ctx context.Context, from string, to []string, subject, body string) (string, error)
}

// NotifierConfig selects the channels of the critical-site digest.
type NotifierConfig struct {
	MinLabel int
	TopicARN string
	From     string
	To       []string
}

// Notifier sends a digest of the sites at or beyond MinLabel. Runs with no
// such site send nothing.
type Notifier struct {
	cfg       NotifierConfig
	publisher Publisher
	mailer    Mailer
}

// NewNotifier accepts a nil publisher or mailer to disable that channel.
func NewNotifier(cfg NotifierConfig, publisher Publisher, mailer Mailer) *Notifier {
	return &Notifier{cfg: cfg, publisher: publisher, mailer: mailer}
}

func (n *Notifier) Name() string { return "notify" }

// Critical returns the results that qualify for the digest, in rank order.
func (n *Notifier) Critical(run *pipeline.Run) []pipeline.RankedSiteResult {
	var out []pipeline.RankedSiteResult
	for _, r := range run.Results {
		if r.RankLabel >= n.cfg.MinLabel {
			out = append(out, r)
		}
	}
	return out
}

func (n *Notifier) Write(ctx context.Context, run *pipeline.Run) error {
	critical := n.Critical(run)
	if len(critical) == 0 {
		return nil
	}

	subject := fmt.Sprintf("%d site(s) need attention", len(critical))
	body := digest(run, critical)

	if n.publisher != nil {
		if _, err := n.publisher.PublishMessage(ctx, n.cfg.TopicARN, subject, body); err != nil {
			return err
		}
	}
	if n.mailer != nil {
		if _, err := n.mailer.SendText(ctx, n.cfg.From, n.cfg.To, subject, body); err != nil {
			return err
		}
	}
	return nil
}

func digest(run *pipeline.Run, critical []pipeline.RankedSiteResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Run %s at %s\n\n", run.RunID, run.GeneratedAt.Format("2006-01-02 15:04:05 MST"))
	for _, r := range critical {
		fmt.Fprintf(&b, "%s: health %.2f, label %d, rank score %.4f\n", r.SiteName, r.SiteHealthScore, r.RankLabel, r.RankScore)
		for _, res := range r.Resources {
			fmt.Fprintf(&b, "  - %s (%s): %s\n", res.ResourceName, res.ResourceType, strings.Join(res.Recommendations, "; "))
		}
	}
	return b.String()
}
