package bulk

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/Ashutosh-Shukla-036/buyer-leads/internal/errs"
	"github.com/Ashutosh-Shukla-036/buyer-leads/internal/model"
)

// Creator is the create step of the record pipeline.
type Creator interface {
	Create(ctx context.Context, actor uuid.UUID, raw map[string]any) (*model.Buyer, error)
}

// RowError reports why one source row was not imported.
type RowError struct {
	Row     int              `json:"row"`
	Message string           `json:"message"`
	Fields  []errs.Violation `json:"fields,omitempty"`
}

// Result summarises an import.
type Result struct {
	Created int        `json:"created"`
	Errors  []RowError `json:"errors"`
}

// Importer feeds rows one by one through Creator, so every row gets full validation,
// rule checks and its own history entry.
type Importer struct {
	creator Creator
	log     *zap.Logger
}

// NewImporter constructs an importer.
func NewImporter(c Creator, log *zap.Logger) *Importer {
	return &Importer{creator: c, log: log}
}

var (
	numberColumns = map[string]bool{"budgetMin": true, "budgetMax": true}
	// columns produced by export that must not be fed back into create
	ignoredColumns = map[string]bool{"id": true, "ownerId": true, "createdAt": true, "updatedAt": true}
)

// Import parses fileName/payload and creates one record per data row owned by actor.
// Only file-level problems return an error; row failures land in Result.Errors.
func (im *Importer) Import(ctx context.Context, actor uuid.UUID, fileName string, payload []byte) (Result, error) {
	if actor == uuid.Nil {
		return Result{}, errs.ErrUnauthenticated
	}
	t, err := readTable(fileName, payload)
	if err != nil {
		return Result{}, errs.Invalid("file", "%v", err)
	}

	res := Result{Errors: []RowError{}}
	for i, row := range t.rows {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		_, err := im.creator.Create(ctx, actor, rowToRaw(t.headers, row))
		if err == nil {
			res.Created++
			continue
		}
		if !errs.Recoverable(err) {
			return res, err
		}
		re := RowError{Row: t.lines[i], Message: err.Error()}
		var ve *errs.ValidationError
		var de *errs.DomainError
		switch {
		case errors.As(err, &ve):
			re.Message = "validation failed"
			re.Fields = ve.Violations
		case errors.As(err, &de):
			re.Message = de.Message
		}
		res.Errors = append(res.Errors, re)
	}

	im.log.Info("import finished",
		zap.String("file", fileName),
		zap.String("actor", actor.String()),
		zap.Int("rows", len(t.rows)),
		zap.Int("created", res.Created),
		zap.Int("failed", len(res.Errors)),
	)
	return res, nil
}

// rowToRaw maps a row onto the JSON payload shape. Blank cells are treated as absent.
func rowToRaw(headers, row []string) map[string]any {
	raw := map[string]any{}
	for i, h := range headers {
		if h == "" || ignoredColumns[h] {
			continue
		}
		cell := strings.TrimSpace(row[i])
		if cell == "" {
			continue
		}
		switch {
		case numberColumns[h]:
			if _, err := strconv.ParseInt(cell, 10, 64); err == nil {
				raw[h] = json.Number(cell)
			} else {
				raw[h] = cell
			}
		case h == "tags":
			raw[h] = splitTags(cell)
		default:
			raw[h] = cell
		}
	}
	return raw
}

func splitTags(s string) []string {
	out := []string{}
	for _, t := range strings.Split(s, ",") {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}
