// Copyright 2025 The quicd Authors
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package confengine

import (
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/cast"
)

// DecodeLoose decodes a loosely-typed map (as produced by a dc
// credential's application-parameters section, which callers may
// populate from arbitrary YAML) into a concrete struct. Unlike
// go-ucfg's Unpack, the source here was never parsed by go-ucfg itself
// -- it arrives as map[string]any from a caller-supplied blob -- so
// mapstructure is used directly rather than round-tripping through a
// ucfg.Config.
func DecodeLoose(raw map[string]any, out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           out,
		TagName:          "config",
	})
	if err != nil {
		return err
	}
	return decoder.Decode(raw)
}

// ToDuration coerces a loosely-typed config value (a YAML string like
// "30s", or an already-numeric value, taken as nanoseconds) to a time.Duration,
// for sections hand-assembled as map[string]any rather than decoded
// from a ucfg.Config.
func ToDuration(v any) (time.Duration, error) {
	return cast.ToDurationE(v)
}
