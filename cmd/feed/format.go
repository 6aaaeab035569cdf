package main

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"unicode/utf8"

	"feed-go/internal/app"
	"feed-go/internal/config"
	"feed-go/internal/feed"
	"feed-go/internal/model"
)

const (
	timeLayout   = "2006-01-02 15:04 MST"
	summaryRunes = 60
)

// printRecordLine writes the one-line listing form of a record.
func printRecordLine(w io.Writer, rec *model.Record) {
	fmt.Fprintf(w, "%s  %s  @%s  likes:%d comments:%d  %s\n",
		rec.ID,
		rec.Created.UTC().Format(timeLayout),
		rec.Author.Username,
		rec.LikeCount,
		rec.CommentCount,
		summary(rec),
	)
}

// summary is the first line of the text, cut to summaryRunes.
func summary(rec *model.Record) string {
	if rec.Text == "" {
		return fmt.Sprintf("[%d attachment(s)]", len(rec.Attachments))
	}
	line, rest, multiline := strings.Cut(rec.Text, "\n")
	cut := multiline && strings.TrimSpace(rest) != ""
	if utf8.RuneCountInString(line) > summaryRunes {
		line = string([]rune(line)[:summaryRunes-3])
		cut = true
	}
	if cut {
		return line + "..."
	}
	return line
}

// printPage writes a listing page followed by its position.
func printPage(w io.Writer, page *model.Page) {
	if page.TotalItems == 0 {
		fmt.Fprintln(w, "No records.")
		return
	}
	for i := range page.Items {
		printRecordLine(w, &page.Items[i])
	}
	if len(page.Items) == 0 {
		fmt.Fprintln(w, "(no records on this page)")
	}
	fmt.Fprintf(w, "Page %d of %d (%d records)\n", page.Page, page.TotalPages, page.TotalItems)
}

// printRecord writes the detailed form of a record.
func printRecord(w io.Writer, rec *model.Record) {
	fmt.Fprintf(w, "ID:       %s\n", rec.ID)
	fmt.Fprintf(w, "Author:   @%s <%s>\n", rec.Author.Username, rec.Author.Email)
	fmt.Fprintf(w, "Created:  %s\n", rec.Created.UTC().Format(timeLayout))
	if !rec.Updated.Equal(rec.Created) {
		fmt.Fprintf(w, "Updated:  %s\n", rec.Updated.UTC().Format(timeLayout))
	}
	if rec.Location != "" {
		fmt.Fprintf(w, "Location: %s\n", rec.Location)
	}
	fmt.Fprintf(w, "Likes:    %d\n", rec.LikeCount)

	if rec.Text != "" {
		fmt.Fprintln(w)
		fmt.Fprintln(w, rec.Text)
	}

	if len(rec.Attachments) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Attachments (%d):\n", len(rec.Attachments))
		for _, a := range rec.Attachments {
			fmt.Fprintf(w, "  %s (%s)\n", a.Name, humanSize(decodedSize(a.Data)))
		}
	}

	if len(rec.Comments) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Comments (%d):\n", rec.CommentCount)
		for _, c := range rec.Comments {
			fmt.Fprintf(w, "  %s  @%s  %s\n", c.ID, c.AuthorUsername, c.Created.UTC().Format(timeLayout))
			fmt.Fprintf(w, "    %s\n", c.Text)
		}
	}
}

// printIdentity writes a one-line description of an identity.
func printIdentity(w io.Writer, id *model.Identity) {
	if id == nil {
		fmt.Fprintln(w, "Not logged in.")
		return
	}
	fmt.Fprintf(w, "@%s <%s> (id %s)", id.Username, id.Email, id.ID)
	if id.Avatar != "" {
		fmt.Fprintf(w, " avatar: %s", id.Avatar)
	}
	fmt.Fprintln(w)
}

// printIdentityPage writes a page of the account directory.
func printIdentityPage(w io.Writer, page *model.IdentityPage) {
	if page.TotalItems == 0 {
		fmt.Fprintln(w, "No users.")
		return
	}
	for i := range page.Items {
		printIdentity(w, &page.Items[i])
	}
	if len(page.Items) == 0 {
		fmt.Fprintln(w, "(no users on this page)")
	}
	fmt.Fprintf(w, "Page %d of %d (%d users)\n", page.Page, page.TotalPages, page.TotalItems)
}

// printConfig writes the effective configuration. The session secret is
// never printed.
func printConfig(w io.Writer, path string, cfg *config.Config) {
	fmt.Fprintf(w, "Config File: %s\n", path)
	fmt.Fprintf(w, "Base Dir:    %s\n", cfg.BaseDir)
	fmt.Fprintf(w, "Log Dir:     %s\n", cfg.LogDir)
	fmt.Fprintf(w, "Log Level:   %s\n", cfg.LogLevel)
	fmt.Fprintln(w)

	sub := cfg.Substrate
	fmt.Fprintln(w, "Substrate:")
	fmt.Fprintf(w, "  Type:      %s\n", sub.Type)
	switch sub.Type {
	case "filesystem", "sqlite":
		fmt.Fprintf(w, "  Data Dir:  %s\n", sub.DataDir)
	case "postgres":
		fmt.Fprintf(w, "  DSN:       %s\n", redactDSN(sub.PostgresDSN))
	case "s3":
		fmt.Fprintf(w, "  Bucket:    %s\n", sub.S3Bucket)
		fmt.Fprintf(w, "  Prefix:    %s\n", sub.S3Prefix)
		fmt.Fprintf(w, "  Region:    %s\n", sub.S3Region)
		if sub.S3Endpoint != "" {
			fmt.Fprintf(w, "  Endpoint:  %s\n", sub.S3Endpoint)
		}
	}
	if sub.MaxBytes > 0 {
		fmt.Fprintf(w, "  Max Bytes: %d\n", sub.MaxBytes)
	}
	fmt.Fprintf(w, "  Encrypted: %t\n", sub.Encrypt)
	if sub.Encrypt {
		fmt.Fprintf(w, "  Public Key:  %s\n", cfg.Encryption.PublicKeyPath)
		fmt.Fprintf(w, "  Private Key: %s\n", cfg.Encryption.PrivateKeyPath)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Feed:")
	fmt.Fprintf(w, "  Collection:  %s\n", cfg.Feed.CollectionKey)
	fmt.Fprintf(w, "  Per Page:    %d\n", cfg.Feed.PerPage)
	fmt.Fprintf(w, "  Session TTL: %s\n", cfg.Session.TTL)
	if cfg.Metrics.TextfilePath != "" {
		fmt.Fprintf(w, "  Metrics:     %s\n", cfg.Metrics.TextfilePath)
	}
}

// redactDSN hides the password of a postgres URL.
func redactDSN(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil || u.User == nil {
		return dsn
	}
	return u.Redacted()
}

func decodedSize(data string) int {
	n, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return 0
	}
	return len(n)
}

func humanSize(n int) string {
	switch {
	case n < 1<<10:
		return fmt.Sprintf("%d B", n)
	case n < 1<<20:
		return fmt.Sprintf("%.1f KiB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%.1f MiB", float64(n)/(1<<20))
	}
}

// describe turns an error into the message shown to the user.
func describe(err error) string {
	if errors.Is(err, app.ErrLocked) {
		return "the feed is encrypted; set FEED_PASSPHRASE or run from a terminal"
	}
	var fe *feed.Error
	if !errors.As(err, &fe) {
		return err.Error()
	}
	switch fe.Kind {
	case feed.KindUnauthenticated:
		if fe.Err != nil {
			return fe.Err.Error()
		}
		return "not logged in; run `feed login` first"
	case feed.KindForbidden:
		return fmt.Sprintf("%s: only the author can do that", fe.Op)
	case feed.KindNotFound:
		if fe.Err != nil {
			return fmt.Sprintf("%s not found: %v", fe.ID, fe.Err)
		}
		return fmt.Sprintf("%s not found", fe.ID)
	case feed.KindValidation:
		if fe.Err != nil {
			return fmt.Sprintf("invalid input: %v", fe.Err)
		}
		return "invalid input"
	default:
		return fmt.Sprintf("storage failure: %v", fe.Err)
	}
}
