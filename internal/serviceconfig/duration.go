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
	"fmt"
	"strings"
	"time"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/durationpb"
)

// Duration defines JSON marshal and unmarshal methods conforming to the
// protobuf JSON spec defined [here].
//
// [here]: https://protobuf.dev/reference/protobuf/google.protobuf/#duration
type Duration time.Duration

func (d Duration) String() string {
	b, _ := protojson.Marshal(durationpb.New(time.Duration(d)))
	return strings.Trim(string(b), `"`)
}

// MarshalJSON converts from d to a JSON string output.
func (d Duration) MarshalJSON() ([]byte, error) {
	return protojson.Marshal(durationpb.New(time.Duration(d)))
}

// UnmarshalJSON unmarshals b as a duration JSON string into d. Durations
// representable in the protobuf message but not in a time.Duration are
// rejected rather than silently saturated.
func (d *Duration) UnmarshalJSON(b []byte) error {
	dp := new(durationpb.Duration)
	if err := protojson.Unmarshal(b, dp); err != nil {
		return err
	}
	dur := dp.AsDuration()
	if rt := durationpb.New(dur); rt.GetSeconds() != dp.GetSeconds() || rt.GetNanos() != dp.GetNanos() {
		return fmt.Errorf("duration %s out of range for time.Duration", b)
	}
	*d = Duration(dur)
	return nil
}
