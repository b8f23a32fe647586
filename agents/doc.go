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

// Package agents answers questions with a team of model-backed agents.
//
// One specialist is assigned to each corpus partition and reasons only over
// passages retrieved from it. Specialists run concurrently on a worker pool;
// once every one of them has finished, a supervisor reconciles their
// judgments into a single verdict.
package agents
