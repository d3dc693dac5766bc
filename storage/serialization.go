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


package storage

import (
	"github.com/poiesic/docreview/core"
)

// MarshalDocument serializes a Document to bytes.
func MarshalDocument(doc *core.Document) []byte {
	buf := make([]byte, core.DocumentMUS.Size(*doc))
	core.DocumentMUS.Marshal(*doc, buf)
	return buf
}

// UnmarshalDocument deserializes a Document from bytes.
func UnmarshalDocument(data []byte) (*core.Document, error) {
	doc, _, err := core.DocumentMUS.Unmarshal(data)
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

// MarshalPoint serializes a ChunkPoint to bytes.
func MarshalPoint(point *core.ChunkPoint) []byte {
	buf := make([]byte, core.PointMUS.Size(*point))
	core.PointMUS.Marshal(*point, buf)
	return buf
}

// UnmarshalPoint deserializes a ChunkPoint from bytes.
func UnmarshalPoint(data []byte) (*core.ChunkPoint, error) {
	point, _, err := core.PointMUS.Unmarshal(data)
	if err != nil {
		return nil, err
	}
	return &point, nil
}

// MarshalQuestion serializes an EvaluationQuestion to bytes.
func MarshalQuestion(question *core.EvaluationQuestion) []byte {
	buf := make([]byte, core.QuestionMUS.Size(*question))
	core.QuestionMUS.Marshal(*question, buf)
	return buf
}

// UnmarshalQuestion deserializes an EvaluationQuestion from bytes.
func UnmarshalQuestion(data []byte) (*core.EvaluationQuestion, error) {
	question, _, err := core.QuestionMUS.Unmarshal(data)
	if err != nil {
		return nil, err
	}
	return &question, nil
}

// MarshalSession serializes a ScoringSession to bytes.
func MarshalSession(session *core.ScoringSession) []byte {
	buf := make([]byte, core.SessionMUS.Size(*session))
	core.SessionMUS.Marshal(*session, buf)
	return buf
}

// UnmarshalSession deserializes a ScoringSession from bytes.
func UnmarshalSession(data []byte) (*core.ScoringSession, error) {
	session, _, err := core.SessionMUS.Unmarshal(data)
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// MarshalJob serializes a Job to bytes.
func MarshalJob(job *core.Job) []byte {
	buf := make([]byte, core.JobMUS.Size(*job))
	core.JobMUS.Marshal(*job, buf)
	return buf
}

// UnmarshalJob deserializes a Job from bytes.
func UnmarshalJob(data []byte) (*core.Job, error) {
	job, _, err := core.JobMUS.Unmarshal(data)
	if err != nil {
		return nil, err
	}
	return &job, nil
}
