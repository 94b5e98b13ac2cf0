package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/nats-io/nats.go"
)

// IntentHandler applies a named intent and reports whether it was accepted.
type IntentHandler func(ctx context.Context, intent string) (bool, error)

// IntentReply is the JSON body sent back to an intent request.
type IntentReply struct {
	Accepted bool   `json:"accepted"`
	Error    string `json:"error,omitempty"`
}

// SubscribeIntents answers requests on <prefix>.intent.<name> for each name.
// The handler gets at most timeout to decide.
func (p *NATSPublisher) SubscribeIntents(names []string, timeout time.Duration, h IntentHandler) error {
	for _, name := range names {
		subject := IntentSubject(p.prefix, name)
		sub, err := p.nc.Subscribe(subject, func(msg *nats.Msg) {
			b, err := json.Marshal(handleIntent(h, name, timeout))
			if err != nil {
				log.Printf("intent %s: marshal reply: %v", name, err)
				return
			}
			if msg.Reply == "" {
				return
			}
			if err := msg.Respond(b); err != nil {
				log.Printf("intent %s: respond: %v", name, err)
			}
		})
		if err != nil {
			return fmt.Errorf("subscribe %s: %w", subject, err)
		}
		p.subs = append(p.subs, sub)
		if p.logSubjects {
			log.Printf("nats subscribe subject=%s", subject)
		}
	}
	return nil
}

func handleIntent(h IntentHandler, name string, timeout time.Duration) IntentReply {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	ok, err := h(ctx, name)
	if err != nil {
		return IntentReply{Error: err.Error()}
	}
	return IntentReply{Accepted: ok}
}
