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

// Package resolve maps surface mentions onto canonical entities.
//
// A mention first matches an existing alias exactly (ignoring case), then the
// closest alias of a same-typed entity by Jaro-Winkler similarity, and only
// then mints a new entity whose ID derives from its type and normalized name.
//
//	resolver, err := resolve.New(graphStore, resolve.WithThreshold(0.9))
//	res, err := resolver.Resolve(ctx, resolve.Mention{Name: "I.B.M.", Type: core.EntityOrganization})
//	// res.EntityID is the ID of the entity previously created for "IBM"
package resolve
