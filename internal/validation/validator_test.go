// Kampai - Location Sharing and Check-in Community Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/kampai

package validation

import (
	"errors"
	"strings"
	"testing"
)

type locationRequest struct {
	Name     string  `validate:"required,max=10"`
	Category string  `validate:"category"`
	Lat      float64 `validate:"gte=-90,lte=90"`
	Point    string  `validate:"omitempty,point"`
}

func TestValidatorSingleton(t *testing.T) {
	if Validator() != Validator() {
		t.Error("Validator() should return the same instance")
	}
}

func TestStruct(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		in        locationRequest
		wantField string
		wantMsg   string
	}{
		{"valid", locationRequest{Name: "Izakaya", Category: "shop", Lat: 35}, "", ""},
		{"empty category allowed", locationRequest{Name: "x"}, "", ""},
		{"missing name", locationRequest{Category: "camp"}, "Name", "Name is required"},
		{"long name", locationRequest{Name: "abcdefghijk"}, "Name", "Name must be at most 10 characters"},
		{"bad category", locationRequest{Name: "x", Category: "bar"}, "Category", "Category must be one of camp, hotel, spot, shop"},
		{"latitude", locationRequest{Name: "x", Lat: 91}, "Lat", "Lat must be less than or equal to 90"},
		{"point", locationRequest{Name: "x", Point: "POINT(1)"}, "Point", "Point must be a POINT(lon lat) value"},
		{"good point", locationRequest{Name: "x", Point: "POINT(139.7 35.6)"}, "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := Struct(&tt.in)
			if tt.wantField == "" {
				if err != nil {
					t.Errorf("Struct() = %v, want nil", err)
				}
				return
			}
			var verr *Error
			if !errors.As(err, &verr) {
				t.Fatalf("Struct() = %v, want *Error", err)
			}
			if !errors.Is(err, ErrInvalid) {
				t.Error("errors.Is(err, ErrInvalid) = false")
			}
			if len(verr.Fields) != 1 || verr.Fields[0].Field != tt.wantField {
				t.Fatalf("Fields = %+v, want one error on %s", verr.Fields, tt.wantField)
			}
			if verr.Fields[0].Message != tt.wantMsg {
				t.Errorf("Message = %q, want %q", verr.Fields[0].Message, tt.wantMsg)
			}
		})
	}
}

func TestStructMultipleErrors(t *testing.T) {
	t.Parallel()

	err := Struct(&locationRequest{Category: "bar", Lat: -100})
	var verr *Error
	if !errors.As(err, &verr) {
		t.Fatalf("Struct() = %v", err)
	}
	if len(verr.Fields) != 3 {
		t.Errorf("len(Fields) = %d, want 3", len(verr.Fields))
	}
	if !strings.Contains(err.Error(), "; ") {
		t.Errorf("Error() = %q should join messages", err.Error())
	}
}

func TestVar(t *testing.T) {
	t.Parallel()

	if err := Var("content", "hi", "required,max=10"); err != nil {
		t.Errorf("Var() = %v, want nil", err)
	}
	err := Var("content", "", "required")
	if err == nil || err.Error() != "content is required" {
		t.Errorf("Var() = %v, want 'content is required'", err)
	}
}
