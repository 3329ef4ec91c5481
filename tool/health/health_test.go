package health

import (
	"context"
	"encoding/json"
	"regexp"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"

	"github.com/smallnest/medrouter/tool"
)

func TestValidateReading(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		systolic  int
		diastolic int
		wantErr   bool
	}{
		{name: "normal", systolic: 120, diastolic: 80},
		{name: "boundary low", systolic: 50, diastolic: 30},
		{name: "boundary high", systolic: 300, diastolic: 200},
		{name: "systolic too low", systolic: 49, diastolic: 30, wantErr: true},
		{name: "systolic too high", systolic: 301, diastolic: 80, wantErr: true},
		{name: "diastolic too low", systolic: 120, diastolic: 29, wantErr: true},
		{name: "diastolic too high", systolic: 250, diastolic: 201, wantErr: true},
		{name: "inverted", systolic: 80, diastolic: 120, wantErr: true},
		{name: "equal", systolic: 100, diastolic: 100, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateReading(tt.systolic, tt.diastolic)
			if tt.wantErr {
				assert.NotNil(t, err)
				assert.Equal(t, tool.KindValidation, err.Kind)
			} else {
				assert.Nil(t, err)
			}
		})
	}
}

func TestReading_Category(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "normal", Reading{Systolic: 120, Diastolic: 80}.Category())
	assert.Equal(t, "normal", Reading{Systolic: 140, Diastolic: 90}.Category())
	assert.Equal(t, "high", Reading{Systolic: 141, Diastolic: 85}.Category())
	assert.Equal(t, "high", Reading{Systolic: 130, Diastolic: 92}.Category())
	assert.Equal(t, "low", Reading{Systolic: 89, Diastolic: 62}.Category())
	assert.Equal(t, "low", Reading{Systolic: 110, Diastolic: 58}.Category())
}

func TestService_Record(t *testing.T) {
	mock, err := pgxmock.NewPool()
	assert.NoError(t, err)
	defer mock.Close()

	svc := NewServiceWithPool(mock, "blood_pressure_readings")

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO blood_pressure_readings")).
		WithArgs(pgxmock.AnyArg(), "user-1", 120, 80, 72, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	reading, err := svc.Record(context.Background(), "user-1", 120, 80, 72)
	assert.NoError(t, err)
	assert.Equal(t, "user-1", reading.UserID)
	assert.Equal(t, 120, reading.Systolic)
	assert.NotEmpty(t, reading.ID)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestService_Record_InvalidReading(t *testing.T) {
	mock, err := pgxmock.NewPool()
	assert.NoError(t, err)
	defer mock.Close()

	svc := NewServiceWithPool(mock, "blood_pressure_readings")

	// Validation rejects before any SQL is issued.
	_, err = svc.Record(context.Background(), "user-1", 400, 80, 0)
	var toolErr *tool.Error
	assert.ErrorAs(t, err, &toolErr)
	assert.Equal(t, tool.KindValidation, toolErr.Kind)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestService_Recent(t *testing.T) {
	mock, err := pgxmock.NewPool()
	assert.NoError(t, err)
	defer mock.Close()

	svc := NewServiceWithPool(mock, "blood_pressure_readings")

	now := time.Now()
	rows := pgxmock.NewRows([]string{"id", "user_id", "systolic", "diastolic", "pulse", "measured_at"}).
		AddRow("bp_2", "user-1", 130, 85, 70, now).
		AddRow("bp_1", "user-1", 120, 80, 0, now.Add(-time.Hour))

	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY measured_at DESC")).
		WithArgs("user-1", 10).
		WillReturnRows(rows)

	readings, err := svc.Recent(context.Background(), "user-1", 0)
	assert.NoError(t, err)
	assert.Len(t, readings, 2)
	assert.Equal(t, "bp_2", readings[0].ID)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestService_Tools(t *testing.T) {
	mock, err := pgxmock.NewPool()
	assert.NoError(t, err)
	defer mock.Close()

	svc := NewServiceWithPool(mock, "blood_pressure_readings")
	registry := tool.NewRegistry(svc.Tools("user-1"))

	assert.Equal(t, []string{"record_blood_pressure", "query_blood_pressure"}, registry.Names())

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO blood_pressure_readings")).
		WithArgs(pgxmock.AnyArg(), "user-1", 120, 80, 0, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	res := registry.Execute(context.Background(), "record_blood_pressure", `{"systolic":120,"diastolic":80}`)
	assert.Nil(t, res.Err)

	var payload struct {
		Status   string  `json:"status"`
		Category string  `json:"category"`
		Reading  Reading `json:"reading"`
	}
	assert.NoError(t, json.Unmarshal([]byte(res.Observation()), &payload))
	assert.Equal(t, "recorded", payload.Status)
	assert.Equal(t, "normal", payload.Category)
	assert.Equal(t, 80, payload.Reading.Diastolic)

	// Out-of-range arguments surface as a structured validation failure.
	res = registry.Execute(context.Background(), "record_blood_pressure", `{"systolic":40,"diastolic":80}`)
	assert.NotNil(t, res.Err)
	assert.Equal(t, tool.KindValidation, res.Err.Kind)

	assert.NoError(t, mock.ExpectationsWereMet())
}
