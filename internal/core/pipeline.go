package core

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/buzzbuster/antispam/internal/logging"
)

// Pipeline classifies each inbound message from a configured group and turns
// a suspicious user into either trusted or spammer, exactly once per group.
type Pipeline struct {
	repo       Repository
	classifier Classifier
	platform   Platform
	reporter   Reporter
	groups     *GroupRegistry
	heuristics []Heuristic
	logger     *zap.Logger

	// defaultInstructions backs groups with no configured instructions text.
	defaultInstructions string
}

// NewPipeline creates the message classification pipeline. Heuristics are
// optional supplementary signals OR-ed into the verdict.
func NewPipeline(
	repo Repository,
	classifier Classifier,
	platform Platform,
	reporter Reporter,
	groups *GroupRegistry,
	heuristics []Heuristic,
	defaultInstructions string,
	logger *zap.Logger,
) *Pipeline {
	return &Pipeline{
		repo:                repo,
		classifier:          classifier,
		platform:            platform,
		reporter:            reporter,
		groups:              groups,
		heuristics:          heuristics,
		defaultInstructions: defaultInstructions,
		logger:              logger,
	}
}

// HandleMessage processes one inbound message. External failures degrade to
// under-enforcement, never to a stuck handler.
func (p *Pipeline) HandleMessage(ctx context.Context, ev MessageEvent) {
	log := logging.FromContext(ctx, p.logger)

	cfg, configured := p.groups.Config(ev.GroupID)
	if !configured {
		log.Debug("Message from unconfigured group", zap.Int64("group_id", ev.GroupID))
		return
	}

	unlock := p.repo.Lock(ev.UserID)
	defer unlock()

	// Known spammers are enforced without any further state change.
	if p.repo.IsSpammer(ctx, ev.UserID) {
		p.enforce(ctx, ev, log)
		p.reporter.Event(ctx, "message_known_spammer_enforced", map[string]any{
			"user_id":  ev.UserID,
			"group_id": ev.GroupID,
		})
		p.reporter.Notify(ctx, fmt.Sprintf(
			"Banned known spammer %d posting in group %d.", ev.UserID, ev.GroupID))
		return
	}

	entry, hasEntry := p.repo.Entry(ctx, ev.UserID, ev.GroupID)
	if !hasEntry {
		if p.repo.IsSeen(ctx, ev.UserID) {
			// Trusted elsewhere: inherit trust, no classification.
			p.repo.MarkSeen(ctx, ev.UserID, ev.GroupID)
			p.reporter.Event(ctx, "trust_inherited", map[string]any{
				"user_id":  ev.UserID,
				"group_id": ev.GroupID,
			})
			return
		}
		p.repo.MarkUnseen(ctx, ev.UserID, ev.GroupID)
		p.repo.MarkSuspicious(ev.UserID)
	}

	switch {
	case p.repo.IsSuspicious(ctx, ev.UserID):
		verdict := p.classify(ctx, ev, cfg, log)
		p.applyVerdict(ctx, ev, verdict, false, log)

	case hasEntry && !entry.Seen:
		// Entry awaits a verdict but the user fell out of the suspicious set
		// (cache loss or restart). Check for trust earned elsewhere first,
		// then classify as a late verdict so audit logs can tell the paths
		// apart.
		if p.repo.IsSeen(ctx, ev.UserID) {
			p.repo.MarkSeen(ctx, ev.UserID, ev.GroupID)
			p.reporter.Event(ctx, "late_trust_inherited", map[string]any{
				"user_id":  ev.UserID,
				"group_id": ev.GroupID,
			})
			return
		}
		verdict := p.classify(ctx, ev, cfg, log)
		p.applyVerdict(ctx, ev, verdict, true, log)

	default:
		log.Debug("Message from trusted user",
			zap.Int64("user_id", ev.UserID),
			zap.Int64("group_id", ev.GroupID))
	}
}

// classify runs the verdict sub-checks in order. An automated forward is spam
// unconditionally and short-circuits the classifier; otherwise the external
// classifier decides, with supplementary heuristics OR-ed in. Any true
// sub-check makes the message spam.
func (p *Pipeline) classify(ctx context.Context, ev MessageEvent, cfg GroupConfig, log *zap.Logger) Verdict {
	if ev.AutoForward {
		return Verdict{Spam: true, Reason: "auto_forward"}
	}

	instructions := cfg.Instructions(p.defaultInstructions)
	spam, err := p.classifier.Classify(ctx, ev.Body, instructions)
	if err != nil {
		// A broken classifier must not turn into aggression: unparseable or
		// failed verdicts count as not spam.
		log.Error("Classifier failed, treating message as not spam",
			zap.Int64("user_id", ev.UserID),
			zap.Int64("group_id", ev.GroupID),
			zap.Error(errors.Join(ErrClassifier, err)))
		spam = false
	}
	verdict := Verdict{Spam: spam, Reason: "classifier"}

	for _, h := range p.heuristics {
		flagged, name := h.Flags(ctx, ev)
		if flagged {
			p.reporter.Event(ctx, "heuristic_flagged", map[string]any{
				"user_id":   ev.UserID,
				"group_id":  ev.GroupID,
				"heuristic": name,
			})
			if !verdict.Spam {
				verdict = Verdict{Spam: true, Reason: name}
			}
		}
	}
	return verdict
}

func (p *Pipeline) applyVerdict(ctx context.Context, ev MessageEvent, verdict Verdict, late bool, log *zap.Logger) {
	prefix := ""
	if late {
		prefix = "late_"
	}
	if verdict.Spam {
		p.repo.MarkSpammer(ctx, ev.UserID, ev.GroupID)
		p.enforce(ctx, ev, log)
		p.reporter.Event(ctx, prefix+"spammer_detected", map[string]any{
			"user_id":  ev.UserID,
			"group_id": ev.GroupID,
			"reason":   verdict.Reason,
		})
		p.reporter.Notify(ctx, fmt.Sprintf(
			"User %d identified as spammer in group %d (%s); banned in all groups.",
			ev.UserID, ev.GroupID, verdict.Reason))
		return
	}

	// First accepted message: the user is trusted here and, through the
	// global seen aggregate, everywhere from now on.
	p.repo.MarkSeen(ctx, ev.UserID, ev.GroupID)
	p.reporter.Event(ctx, prefix+"user_trusted", map[string]any{
		"user_id":  ev.UserID,
		"group_id": ev.GroupID,
	})
	p.reporter.Notify(ctx, fmt.Sprintf(
		"First message from user %d in group %d accepted; user is trusted now.",
		ev.UserID, ev.GroupID))
}

// enforce bans the sender and deletes the offending message. Platform
// failures are logged and swallowed; a partial enforcement is still better
// than a stuck handler.
func (p *Pipeline) enforce(ctx context.Context, ev MessageEvent, log *zap.Logger) {
	if err := p.platform.BanMember(ctx, ev.GroupID, ev.UserID); err != nil {
		log.Error("Failed to ban member",
			zap.Int64("user_id", ev.UserID),
			zap.Int64("group_id", ev.GroupID),
			zap.Error(err))
	}
	if err := p.platform.DeleteMessage(ctx, ev.GroupID, ev.MessageID); err != nil {
		log.Error("Failed to delete message",
			zap.Int64("message_id", ev.MessageID),
			zap.Int64("group_id", ev.GroupID),
			zap.Error(err))
	}
}
