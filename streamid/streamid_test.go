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

package streamid

import "testing"

func TestInitialIDsPerCategory(t *testing.T) {
	cases := []struct {
		initiator Initiator
		typ       Type
		want      ID
	}{
		{Client, Bidi, 0},
		{Server, Bidi, 1},
		{Client, Uni, 2},
		{Server, Uni, 3},
	}
	for _, c := range cases {
		got := New(c.initiator, c.typ, 0)
		if got != c.want {
			t.Fatalf("New(%v, %v, 0) = %d, want %d", c.initiator, c.typ, got, c.want)
		}
		if got.Initiator() != c.initiator {
			t.Fatalf("id %d Initiator() = %v, want %v", got, got.Initiator(), c.initiator)
		}
		if got.Type() != c.typ {
			t.Fatalf("id %d Type() = %v, want %v", got, got.Type(), c.typ)
		}
	}
}

func TestNextOfTypeStepsByFour(t *testing.T) {
	id := New(Client, Bidi, 0)
	for i := uint64(1); i < 10; i++ {
		id = id.NextOfType()
		if id.Index() != i {
			t.Fatalf("after %d steps, Index() = %d, want %d", i, id.Index(), i)
		}
		if id.Initiator() != Client || id.Type() != Bidi {
			t.Fatalf("stepping changed category at index %d", i)
		}
	}
}

func TestInitiatedBy(t *testing.T) {
	id := New(Server, Uni, 5)
	if !id.InitiatedBy(Server) {
		t.Fatal("expected stream initiated by Server")
	}
	if id.InitiatedBy(Client) {
		t.Fatal("did not expect stream initiated by Client")
	}
}
