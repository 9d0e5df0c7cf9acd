package notifications

import (
	"context"
	"errors"
	"fmt"
)

// Notifier delivers a formatted message to a chat channel.
type Notifier interface {
	Send(ctx context.Context, channelID, msg string) error
}

// DocumentSender is implemented by notifiers that can upload files.
type DocumentSender interface {
	SendDocument(ctx context.Context, channelID, path, caption string) error
}

// Multi fans a message out to every notifier. It fails only when every
// notifier failed.
type Multi []Notifier

func (m Multi) Send(ctx context.Context, channelID, msg string) error {
	if len(m) == 0 {
		return nil
	}
	var errs []error
	for _, n := range m {
		if err := n.Send(ctx, channelID, msg); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) == len(m) {
		return errors.Join(errs...)
	}
	return nil
}

func (m Multi) SendDocument(ctx context.Context, channelID, path, caption string) error {
	var (
		errs []error
		sent int
	)
	for _, n := range m {
		ds, ok := n.(DocumentSender)
		if !ok {
			continue
		}
		if err := ds.SendDocument(ctx, channelID, path, caption); err != nil {
			errs = append(errs, err)
			continue
		}
		sent++
	}
	if sent == 0 && len(errs) == 0 {
		return fmt.Errorf("no notifier can send documents")
	}
	if sent == 0 {
		return errors.Join(errs...)
	}
	return nil
}
