// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package adala

import "errors"

var (
	// ErrConfigRequired is returned when no configuration is provided.
	ErrConfigRequired = errors.New("config required")

	// ErrNoDocuments is returned when the data directory yields no passages.
	ErrNoDocuments = errors.New("no documents found")

	// ErrIndexEmpty is returned by Open when the index holds no documents.
	ErrIndexEmpty = errors.New("index is empty")
)
