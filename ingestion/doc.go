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

// Package ingestion loads the legal corpus and indexes it for search.
//
// A Loader reads every CSV file of the data directory into core.Document
// values. An Indexer embeds those documents in batches on a worker pool and
// writes them to a storage.VectorIndex, retrying failed batches with
// exponential backoff. A Watcher reports changes to the data directory so
// the corpus can be reloaded without a restart.
package ingestion
