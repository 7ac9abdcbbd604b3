package annotation

import (
	"errors"
	"math"
	"unicode/utf8"

	"marginalia/internal/config"
	"marginalia/internal/domain"
	models "marginalia/internal/domain/models/annotation"
	svc "marginalia/internal/domain/services/annotation"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// lookupFunc finds a record by id in the collection being validated against
type lookupFunc func(id string) *models.Record

func validateDocumentID(documentID string) error {
	err := validation.Validate(documentID,
		validation.Required,
		validation.RuneLength(1, config.MaxDocumentIDLength),
	)
	if err != nil {
		return domain.NewValidation("documentId: %s", err.Error())
	}
	return nil
}

// validateRecord checks a complete record against the per-kind rules.
// lookup resolves relatedTo targets.
func (s *Store) validateRecord(rec *models.Record, lookup lookupFunc) error {
	err := validation.ValidateStruct(rec,
		validation.Field(&rec.ID, validation.RuneLength(0, config.MaxAnnotationIDLength)),
		validation.Field(&rec.PageIndex, validation.Required, validation.Min(1)),
		validation.Field(&rec.Kind, validation.Required, validation.By(validKind)),
		validation.Field(&rec.Color, validation.Required, validation.By(s.paletteColor)),
		validation.Field(&rec.PositionHint, validation.By(fractionalPosition)),
		validation.Field(&rec.Text, textRules(rec.Kind)...),
		validation.Field(&rec.RelatedTo, relatedToRules(rec, lookup)...),
	)
	if err != nil {
		return &domain.ValidationError{Message: err.Error()}
	}
	return nil
}

func textRules(kind models.Kind) []validation.Rule {
	switch kind {
	case models.KindHighlight:
		return []validation.Rule{
			validation.Required.Error("highlight text cannot be empty"),
			validation.By(validUTF8),
			validation.RuneLength(1, config.MaxHighlightTextLength),
		}
	case models.KindNote:
		return []validation.Rule{
			validation.By(validUTF8),
			validation.RuneLength(0, config.MaxNoteTextLength),
		}
	default:
		return []validation.Rule{
			validation.Empty.Error("bookmarks carry no text"),
		}
	}
}

func relatedToRules(rec *models.Record, lookup lookupFunc) []validation.Rule {
	if rec.Kind != models.KindNote {
		return []validation.Rule{validation.Nil.Error("only notes can be related to another annotation")}
	}
	return []validation.Rule{validation.By(func(value interface{}) error {
		target, _ := value.(*string)
		if target == nil {
			return nil
		}
		if *target == "" {
			return errors.New("cannot be an empty id")
		}
		if *target == rec.ID {
			return errors.New("a note cannot be related to itself")
		}
		parent := lookup(*target)
		if parent == nil {
			return errors.New("references an unknown annotation")
		}
		if !parent.Kind.CanHaveNotes() {
			return errors.New("must reference a bookmark or highlight")
		}
		return nil
	})}
}

// validUTF8 rejects text the JSON snapshot codec would rewrite on the way to storage
func validUTF8(value interface{}) error {
	text, _ := value.(string)
	if !utf8.ValidString(text) {
		return errors.New("must be valid UTF-8")
	}
	return nil
}

func validKind(value interface{}) error {
	k, _ := value.(models.Kind)
	if !k.Valid() {
		return errors.New("must be bookmark, highlight or note")
	}
	return nil
}

func (s *Store) paletteColor(value interface{}) error {
	c, _ := value.(models.Color)
	if !s.palette.Valid(c) {
		return errors.New("is not a palette color")
	}
	return nil
}

func fractionalPosition(value interface{}) error {
	p, _ := value.(models.Position)
	for _, v := range []float64{p.X, p.Y} {
		if math.IsNaN(v) || v < 0 || v > 1 {
			return errors.New("coordinates must be fractions between 0 and 1")
		}
	}
	return nil
}

// applyUpdate returns an updated copy of current and whether anything changed.
// Kind and document are immutable, as is the text of highlights and bookmarks.
func applyUpdate(current *models.Record, fields svc.UpdateFields) (*models.Record, bool, error) {
	if fields.Kind != nil && *fields.Kind != current.Kind {
		return nil, false, domain.NewValidation("kind cannot be changed")
	}
	if fields.DocumentID != nil && *fields.DocumentID != current.DocumentID {
		return nil, false, domain.NewValidation("documentId cannot be changed")
	}

	updated := current.Clone()
	changed := false

	if fields.Text != nil && *fields.Text != current.Text {
		switch current.Kind {
		case models.KindHighlight:
			return nil, false, domain.NewValidation("highlight text cannot be changed")
		case models.KindBookmark:
			return nil, false, domain.NewValidation("bookmarks carry no text")
		}
		updated.Text = *fields.Text
		changed = true
	}
	if fields.Color != nil && *fields.Color != current.Color {
		updated.Color = *fields.Color
		changed = true
	}
	if fields.PositionHint != nil && *fields.PositionHint != current.PositionHint {
		updated.PositionHint = *fields.PositionHint
		changed = true
	}

	return updated, changed, nil
}
