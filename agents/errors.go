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

package agents

import "errors"

var (
	// ErrRetrieverRequired indicates the coordinator was built without a retriever.
	ErrRetrieverRequired = errors.New("retriever is required")

	// ErrCompleterRequired indicates the coordinator was built without a model.
	ErrCompleterRequired = errors.New("completer is required")

	// ErrUnavailable indicates no partition had passages for the question.
	ErrUnavailable = errors.New("no partition qualifies for multi-agent answering")

	// ErrNoJudgments indicates every specialist failed.
	ErrNoJudgments = errors.New("no specialist produced a judgment")

	// ErrParse indicates agent output could not be read as JSON.
	ErrParse = errors.New("agent output is not parseable")

	// ErrEmptyVerdict indicates the supervisor answered with no text.
	ErrEmptyVerdict = errors.New("supervisor verdict has no answer")
)
