package page

import (
	"context"
	"fmt"
)

// TypingEvents lists the events SimulateTyping fires, in order. The
// composer only enables its submit button after seeing this sequence.
var TypingEvents = []string{
	"beforeinput", "input", "compositionstart", "compositionend", "change", "blur", "focus",
}

// SimulateTyping replaces el's content with text and fires the event
// sequence a real keyboard entry would produce.
func (a *Agent) SimulateTyping(ctx context.Context, el Element, text string) error {
	log := a.log.WithContext(ctx)
	log.Debug("typing_start", map[string]interface{}{"chars": len([]rune(text))})

	if err := el.Focus(ctx); err != nil {
		return fmt.Errorf("focus: %w", err)
	}
	if err := a.sleep(ctx, a.timings.FocusSettle); err != nil {
		return err
	}

	if err := el.SetText(ctx, ""); err != nil {
		return fmt.Errorf("clear: %w", err)
	}
	if err := el.Dispatch(ctx, inputEvent("beforeinput", text)); err != nil {
		return fmt.Errorf("dispatch beforeinput: %w", err)
	}
	if err := el.SetText(ctx, text); err != nil {
		return fmt.Errorf("set content: %w", err)
	}
	if err := el.Dispatch(ctx, inputEvent("input", text)); err != nil {
		return fmt.Errorf("dispatch input: %w", err)
	}

	for _, name := range TypingEvents[2:] {
		if err := el.Dispatch(ctx, Event{Type: name, Bubbles: true}); err != nil {
			return fmt.Errorf("dispatch %s: %w", name, err)
		}
	}

	if err := a.sleep(ctx, a.timings.FocusSettle); err != nil {
		return err
	}
	log.Debug("typing_done", nil)
	return nil
}

func inputEvent(typ, data string) Event {
	return Event{
		Type:       typ,
		Bubbles:    true,
		Cancelable: true,
		InputType:  "insertText",
		Data:       data,
	}
}
