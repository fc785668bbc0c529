package page

import (
	"context"
	"time"

	"github.com/joss/xpost/internal/domain"
)

// HandlePost opens the composer (reply affordance when replying and
// present, compose button otherwise), types cmd.Content and clicks the
// submit button if it is enabled. Success means the click was attempted;
// the page's acceptance of the post is not observed.
func (a *Agent) HandlePost(ctx context.Context, cmd domain.PostCommand) domain.PostResult {
	start := time.Now()
	log := a.log.WithContext(ctx)

	if err := a.handlePost(ctx, cmd); err != nil {
		log.Warn("post_failed", map[string]interface{}{
			"agent": a.id,
			"kind":  domain.KindOf(err),
		}, err)
		return domain.PostFailed(err)
	}

	log.TimedEvent("post_attempted", start, map[string]interface{}{
		"agent": a.id,
		"reply": cmd.ReplyToID != nil,
		"chars": len([]rune(cmd.Content)),
	})
	return domain.PostResult{Success: true}
}

func (a *Agent) handlePost(ctx context.Context, cmd domain.PostCommand) error {
	if cmd.ReplyToID != nil {
		btn, ok, err := a.query(ctx, ReplyButton)
		if err != nil {
			return domain.WrapError(domain.KindTransport, "post", err)
		}
		if ok {
			if err := btn.Click(ctx); err != nil {
				return domain.WrapError(domain.KindTransport, "post", err)
			}
			if err := a.sleep(ctx, a.timings.AffordanceSettle); err != nil {
				return domain.WrapError(domain.KindTransport, "post", err)
			}
		}
	} else {
		btn, err := a.WaitForElement(ctx, ComposeButton, a.timings.WaitTimeout)
		if err != nil {
			return err
		}
		if err := btn.Click(ctx); err != nil {
			return domain.WrapError(domain.KindTransport, "post", err)
		}
		if err := a.sleep(ctx, a.timings.AffordanceSettle); err != nil {
			return domain.WrapError(domain.KindTransport, "post", err)
		}
	}

	input, err := a.WaitForElement(ctx, TweetTextInput, a.timings.WaitTimeout)
	if err != nil {
		return err
	}
	if err := a.SimulateTyping(ctx, input, cmd.Content); err != nil {
		return domain.WrapError(domain.KindTransport, "post", err)
	}

	if err := a.sleep(ctx, a.timings.AffordanceSettle); err != nil {
		return domain.WrapError(domain.KindTransport, "post", err)
	}
	submit, err := a.WaitForElement(ctx, PostButton, a.timings.WaitTimeout)
	if err != nil {
		return err
	}
	disabled, err := submit.Disabled(ctx)
	if err != nil {
		return domain.WrapError(domain.KindTransport, "post", err)
	}
	if disabled {
		a.log.WithContext(ctx).Warn("post_button_disabled", map[string]interface{}{"agent": a.id}, nil)
		return nil
	}
	if err := submit.Click(ctx); err != nil {
		return domain.WrapError(domain.KindTransport, "post", err)
	}
	return nil
}
