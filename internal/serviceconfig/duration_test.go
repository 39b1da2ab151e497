/*
 *
 * Copyright 2024 Relay authors.
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
 *
 */

package serviceconfig

import (
	"testing"
	"time"
)

func (s) TestDurationUnmarshalJSON(t *testing.T) {
	tests := []struct {
		name    string
		json    string
		want    Duration
		wantErr bool
	}{
		{
			name: "seconds only",
			json: `"10s"`,
			want: Duration(10 * time.Second),
		},
		{
			name: "fractional",
			json: `"1.5s"`,
			want: Duration(1500 * time.Millisecond),
		},
		{
			name: "nanosecond precision",
			json: `"0.000000001s"`,
			want: Duration(time.Nanosecond),
		},
		{
			name: "negative",
			json: `"-3.1s"`,
			want: Duration(-3100 * time.Millisecond),
		},
		{
			name: "zero",
			json: `"0s"`,
			want: Duration(0),
		},
		{
			name:    "missing suffix",
			json:    `"10"`,
			wantErr: true,
		},
		{
			name:    "not a string",
			json:    `10`,
			wantErr: true,
		},
		{
			name:    "garbage",
			json:    `"blue"`,
			wantErr: true,
		},
		{
			name:    "beyond proto range",
			json:    `"315576000001s"`,
			wantErr: true,
		},
		{
			name:    "beyond time.Duration range",
			json:    `"315576000000s"`,
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got Duration
			err := got.UnmarshalJSON([]byte(tt.json))
			if (err != nil) != tt.wantErr {
				t.Fatalf("UnmarshalJSON(%v) error = %v, wantErr %v", tt.json, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("UnmarshalJSON(%v) = %v, want %v", tt.json, got, tt.want)
			}
		})
	}
}

func (s) TestDurationMarshalJSON(t *testing.T) {
	tests := []struct {
		name string
		d    Duration
		want string
	}{
		{
			name: "whole seconds",
			d:    Duration(3 * time.Second),
			want: `"3s"`,
		},
		{
			name: "millis",
			d:    Duration(1500 * time.Millisecond),
			want: `"1.500s"`,
		},
		{
			name: "nanos",
			d:    Duration(time.Second + time.Nanosecond),
			want: `"1.000000001s"`,
		},
		{
			name: "negative",
			d:    Duration(-time.Second),
			want: `"-1s"`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.d.MarshalJSON()
			if err != nil {
				t.Fatalf("MarshalJSON(%v) error = %v", time.Duration(tt.d), err)
			}
			if string(got) != tt.want {
				t.Errorf("MarshalJSON(%v) = %s, want %s", time.Duration(tt.d), got, tt.want)
			}
		})
	}
}

func (s) TestDurationString(t *testing.T) {
	if got, want := Duration(2500*time.Millisecond).String(), "2.500s"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}
