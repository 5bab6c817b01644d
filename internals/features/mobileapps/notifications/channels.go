package notifications

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/bytedance/sonic"
)

// Publish is one decoded delivery request.
type Publish struct {
	APIURL    string
	Key       string
	Secret    string
	Message   string
	UserIDs   []int64
	SendToAll bool
}

// Channel delivers to one push provider.
type Channel interface {
	Name() string
	Publish(ctx context.Context, p Publish) error
}

/* ===== Urban Airship ===== */

const urbanAirshipDefaultURL = "https://go.urbanairship.com"

// UrbanAirship calls the UA push API with basic auth (app key / master secret).
type UrbanAirship struct {
	Client *http.Client
}

func NewUrbanAirship() *UrbanAirship {
	return &UrbanAirship{Client: &http.Client{Timeout: 15 * time.Second}}
}

func (u *UrbanAirship) Name() string { return "urban-airship" }

func (u *UrbanAirship) Publish(ctx context.Context, p Publish) error {
	if p.Key == "" || p.Secret == "" {
		return fmt.Errorf("urban-airship: missing credentials")
	}

	var audience any = "all"
	if !p.SendToAll {
		if len(p.UserIDs) == 0 {
			return nil
		}
		named := make([]string, len(p.UserIDs))
		for i, id := range p.UserIDs {
			named[i] = strconv.FormatInt(id, 10)
		}
		audience = map[string]any{"named_user": named}
	}
	payload := map[string]any{
		"audience":     audience,
		"notification": map[string]any{"alert": p.Message},
		"device_types": "all",
	}
	body, err := sonic.Marshal(payload)
	if err != nil {
		return err
	}

	base := strings.TrimRight(p.APIURL, "/")
	if base == "" {
		base = urbanAirshipDefaultURL
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+"/api/push", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.SetBasicAuth(p.Key, p.Secret)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/vnd.urbanairship+json; version=3")

	resp, err := u.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("urban-airship: status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	return nil
}

/* ===== log ===== */

// LogChannel only logs; used for providers without an HTTP channel.
type LogChannel struct{}

func (LogChannel) Name() string { return "log" }

func (LogChannel) Publish(_ context.Context, p Publish) error {
	log.Printf("[WORKER] log channel: all=%v recipients=%d message=%q", p.SendToAll, len(p.UserIDs), p.Message)
	return nil
}
