package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtrasAcceptNumericIdentifiers(t *testing.T) {
	resp := SurveyResponse{AdditionalData: []byte(`{"department_id":3,"program_id":"12","year_level":2,"property_name":"Villa Rosa"}`)}

	extras := resp.Extras()
	assert.Equal(t, "3", extras.DepartmentID)
	assert.Equal(t, "12", extras.ProgramID)
	assert.Equal(t, "2", extras.YearLevel)
	assert.Equal(t, "Villa Rosa", extras.PropertyName)
}

func TestExtrasToleratesMalformedBag(t *testing.T) {
	resp := SurveyResponse{AdditionalData: []byte(`{"department_id":`)}
	assert.Equal(t, ResponseExtras{}, resp.Extras())

	resp.AdditionalData = nil
	assert.Equal(t, ResponseExtras{}, resp.Extras())
}
