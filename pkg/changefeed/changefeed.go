/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package changefeed publishes mirrored value changes to NATS JetStream as
// CloudEvents.
package changefeed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/carverauto/opcua-aggregator/pkg/logger"
	"github.com/carverauto/opcua-aggregator/pkg/models"
)

const (
	defaultSubjectPrefix = "opcua.changes"
	defaultStream        = "OPCUA_CHANGES"
	eventSource          = "serviceradar/opcua-aggregator"
	eventType            = "com.carverauto.serviceradar.opcua.value_change"
)

var errURLRequired = errors.New("nats url is required")

// ChangeEvent is the CloudEvents 1.0 envelope around a value change.
type ChangeEvent struct {
	SpecVersion     string              `json:"specversion"`
	ID              string              `json:"id"`
	Source          string              `json:"source"`
	Type            string              `json:"type"`
	DataContentType string              `json:"datacontenttype"`
	Subject         string              `json:"subject,omitempty"`
	Time            time.Time           `json:"time"`
	Data            *models.ValueChange `json:"data"`
}

// Config selects the NATS server and subjects of the change feed.
type Config struct {
	Enabled       bool   `json:"enabled"`
	URL           string `json:"url"`
	Domain        string `json:"domain,omitempty"`
	Stream        string `json:"stream,omitempty"`
	SubjectPrefix string `json:"subject_prefix,omitempty"`
}

// Validate implements config.Validator interface.
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}

	if c.URL == "" {
		return errURLRequired
	}

	if c.Stream == "" {
		c.Stream = defaultStream
	}

	if c.SubjectPrefix == "" {
		c.SubjectPrefix = defaultSubjectPrefix
	}

	return nil
}

// streamPublisher is the part of jetstream.JetStream the feed publishes through.
type streamPublisher interface {
	Publish(ctx context.Context, subject string, payload []byte, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error)
}

// Publisher sends one CloudEvent per applied value change to
// <subject_prefix>.<server_id>.
type Publisher struct {
	js     streamPublisher
	nc     *nats.Conn
	prefix string
	logger logger.Logger
}

// NewPublisher creates a Publisher over an existing JetStream context.
func NewPublisher(js streamPublisher, subjectPrefix string, log logger.Logger) *Publisher {
	if subjectPrefix == "" {
		subjectPrefix = defaultSubjectPrefix
	}

	return &Publisher{js: js, prefix: subjectPrefix, logger: log}
}

// Connect dials NATS, makes sure the stream captures the feed subjects and
// returns a ready Publisher. Close releases the connection.
func Connect(ctx context.Context, config *Config, log logger.Logger) (*Publisher, error) {
	nc, err := nats.Connect(config.URL,
		nats.Name("opcua-aggregator"),
		nats.ErrorHandler(func(_ *nats.Conn, _ *nats.Subscription, err error) {
			log.Error().Err(err).Msg("NATS error")
		}),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	var js jetstream.JetStream

	if config.Domain != "" {
		js, err = jetstream.NewWithDomain(nc, config.Domain)
	} else {
		js, err = jetstream.New(nc)
	}

	if err != nil {
		nc.Close()

		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	if err := ensureStream(ctx, js, config.Stream, config.SubjectPrefix+".>"); err != nil {
		nc.Close()

		return nil, err
	}

	p := NewPublisher(js, config.SubjectPrefix, log)
	p.nc = nc

	log.Info().
		Str("url", nc.ConnectedUrl()).
		Str("stream", config.Stream).
		Str("subject_prefix", config.SubjectPrefix).
		Msg("Change feed connected")

	return p, nil
}

func ensureStream(ctx context.Context, js jetstream.JetStream, name, subject string) error {
	stream, err := js.Stream(ctx, name)
	if err != nil {
		_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
			Name:     name,
			Subjects: []string{subject},
		})
		if err != nil {
			return fmt.Errorf("failed to create stream %s: %w", name, err)
		}

		return nil
	}

	cfg := stream.CachedInfo().Config

	subjects := ensureSubjectList(cfg.Subjects, subject)
	if len(subjects) == len(cfg.Subjects) {
		return nil
	}

	cfg.Subjects = subjects

	if _, err := js.UpdateStream(ctx, cfg); err != nil {
		return fmt.Errorf("failed to add %s to stream %s: %w", subject, name, err)
	}

	return nil
}

// ensureSubjectList appends subject unless an existing pattern already covers it.
func ensureSubjectList(subjects []string, subject string) []string {
	for _, s := range subjects {
		if matchesSubject(s, subject) {
			return subjects
		}
	}

	return append(subjects, subject)
}

// matchesSubject reports whether pattern, which may hold * and > wildcards,
// covers subject. A literal ">" in subject is only covered by ">".
func matchesSubject(pattern, subject string) bool {
	p := strings.Split(pattern, ".")
	s := strings.Split(subject, ".")

	for i, tok := range p {
		if tok == ">" {
			return i < len(s)
		}

		if i >= len(s) {
			return false
		}

		if tok == "*" && s[i] == ">" {
			return false
		}

		if tok != "*" && tok != s[i] {
			return false
		}
	}

	return len(p) == len(s)
}

// Subject returns the subject a change of serverID is published on.
func (p *Publisher) Subject(serverID string) string {
	return p.prefix + "." + subjectToken(serverID)
}

// subjectToken replaces characters NATS treats as separators or wildcards.
func subjectToken(s string) string {
	if s == "" {
		return "_"
	}

	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t', '\n', '\r':
			return '_'
		default:
			return r
		}
	}, s)
}

// PublishChange implements aggregator.ChangeSink.
func (p *Publisher) PublishChange(ctx context.Context, change *models.ValueChange) error {
	subject := p.Subject(change.ServerID)

	event := ChangeEvent{
		SpecVersion:     "1.0",
		ID:              uuid.New().String(),
		Source:          eventSource,
		Type:            eventType,
		DataContentType: "application/json",
		Subject:         subject,
		Time:            change.Time,
		Data:            change,
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal value change: %w", err)
	}

	ack, err := p.js.Publish(ctx, subject, payload)
	if err != nil {
		return fmt.Errorf("failed to publish value change: %w", err)
	}

	p.logger.Debug().
		Str("subject", subject).
		Str("stream", ack.Stream).
		Uint64("seq", ack.Sequence).
		Msg("Published value change")

	return nil
}

// Close drains the NATS connection opened by Connect.
func (p *Publisher) Close() error {
	if p.nc == nil {
		return nil
	}

	return p.nc.Drain()
}
