package common

import (
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorKinds(t *testing.T) {
	invalid := InvalidInput("house_age", "year_built %d is in the future", 2030)
	failed := PredictionFailed("score", io.ErrUnexpectedEOF)
	startup := StartupFailure("load_model", errors.New("missing file"))

	assert.True(t, errors.Is(invalid, ErrInvalidInput))
	assert.False(t, errors.Is(invalid, ErrPredictionFailed))
	assert.True(t, errors.Is(failed, ErrPredictionFailed))
	assert.True(t, errors.Is(failed, io.ErrUnexpectedEOF))
	assert.True(t, errors.Is(startup, ErrStartupFailure))

	assert.Equal(t, KindInvalidInput, KindOf(invalid))
	assert.Equal(t, KindPredictionFailed, KindOf(fmt.Errorf("wrapped: %w", failed)))
	assert.Equal(t, ErrorKind(""), KindOf(errors.New("plain")))
	assert.Equal(t, "score", StepOf(failed))
}

func TestErrorMessage(t *testing.T) {
	err := InvalidInput("bed_bath_ratio", "bathrooms must be greater than zero, got %v", 0)
	assert.Equal(t, "invalid input: bed_bath_ratio: bathrooms must be greater than zero, got 0", err.Error())

	err = PredictionFailed("transform", errors.New("boom"))
	assert.Equal(t, "prediction failed: transform: boom", err.Error())
}

func TestErrorIs_MatchesStep(t *testing.T) {
	err := InvalidInput("house_age", "bad")
	assert.True(t, errors.Is(err, &Error{Kind: KindInvalidInput, Step: "house_age"}))
	assert.False(t, errors.Is(err, &Error{Kind: KindInvalidInput, Step: "bed_bath_ratio"}))
}
