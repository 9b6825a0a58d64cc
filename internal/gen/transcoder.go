//
// Copyright © 2017 Solus Project
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//

package gen

import (
	"bytes"
	"encoding/gob"
)

// gobEncoder is a small non-shared wrapper over gob.Encoder, one per call
// site rather than pooled, since history writes are infrequent.
type gobEncoder struct {
	buf *bytes.Buffer
	enc *gob.Encoder
}

func newGobEncoder() *gobEncoder {
	buf := &bytes.Buffer{}
	return &gobEncoder{buf: buf, enc: gob.NewEncoder(buf)}
}

// EncodeType gob-encodes t and returns the resulting bytes.
func (g *gobEncoder) EncodeType(t interface{}) ([]byte, error) {
	if err := g.enc.Encode(t); err != nil {
		return nil, err
	}
	return g.buf.Bytes(), nil
}

type gobDecoder struct {
	dec *gob.Decoder
}

func newGobDecoder() *gobDecoder {
	return &gobDecoder{}
}

// DecodeType gob-decodes buf into outT.
func (g *gobDecoder) DecodeType(buf []byte, outT interface{}) error {
	g.dec = gob.NewDecoder(bytes.NewReader(buf))
	return g.dec.Decode(outT)
}
