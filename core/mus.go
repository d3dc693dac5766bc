package core

import (
	"time"

	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/raw"
	"github.com/mus-format/mus-go/varint"
)

// MUS serializers for the persisted domain types. Written by hand against
// the mus-go primitive serializers; the layout is versioned by the storage
// layer's key prefixes, not in-band.

var (
	DocumentMUS = documentMUS{}
	PointMUS    = pointMUS{}
	QuestionMUS = questionMUS{}
	SessionMUS  = sessionMUS{}
	JobMUS      = jobMUS{}
)

// time is stored as UnixMicro; the zero time maps to 0.

func sizeTime(t time.Time) int {
	if t.IsZero() {
		return varint.Int64.Size(0)
	}
	return varint.Int64.Size(t.UnixMicro())
}

func marshalTime(t time.Time, bs []byte) int {
	var us int64
	if !t.IsZero() {
		us = t.UnixMicro()
	}
	return varint.Int64.Marshal(us, bs)
}

func unmarshalTime(bs []byte) (time.Time, int, error) {
	us, n, err := varint.Int64.Unmarshal(bs)
	if err != nil || us == 0 {
		return time.Time{}, n, err
	}
	return time.UnixMicro(us).UTC(), n, nil
}

func sizeVector(v []float32) int {
	size := varint.Int.Size(len(v))
	for _, f := range v {
		size += raw.Float32.Size(f)
	}
	return size
}

func marshalVector(v []float32, bs []byte) int {
	n := varint.Int.Marshal(len(v), bs)
	for _, f := range v {
		n += raw.Float32.Marshal(f, bs[n:])
	}
	return n
}

func unmarshalVector(bs []byte) ([]float32, int, error) {
	length, n, err := varint.Int.Unmarshal(bs)
	if err != nil {
		return nil, n, err
	}
	if length == 0 {
		return nil, n, nil
	}
	v := make([]float32, length)
	for i := range v {
		var fn int
		v[i], fn, err = raw.Float32.Unmarshal(bs[n:])
		n += fn
		if err != nil {
			return nil, n, err
		}
	}
	return v, n, nil
}

func sizeIDs(ids []ID) int {
	size := varint.Int.Size(len(ids))
	for _, id := range ids {
		size += varint.Uint64.Size(uint64(id))
	}
	return size
}

func marshalIDs(ids []ID, bs []byte) int {
	n := varint.Int.Marshal(len(ids), bs)
	for _, id := range ids {
		n += varint.Uint64.Marshal(uint64(id), bs[n:])
	}
	return n
}

func unmarshalIDs(bs []byte) ([]ID, int, error) {
	length, n, err := varint.Int.Unmarshal(bs)
	if err != nil {
		return nil, n, err
	}
	if length == 0 {
		return nil, n, nil
	}
	ids := make([]ID, length)
	for i := range ids {
		var u uint64
		var un int
		u, un, err = varint.Uint64.Unmarshal(bs[n:])
		n += un
		if err != nil {
			return nil, n, err
		}
		ids[i] = ID(u)
	}
	return ids, n, nil
}

type documentMUS struct{}

func (documentMUS) Size(d Document) int {
	return ord.String.Size(d.ChatID) +
		sizeTime(d.UploadedAt) +
		ord.String.Size(d.DocID) +
		ord.String.Size(d.FileName) +
		ord.String.Size(d.BlobKey) +
		ord.String.Size(d.FileType) +
		varint.Int.Size(int(d.Status)) +
		ord.String.Size(d.Error) +
		ord.String.Size(d.Note) +
		sizeIDs(d.MissingQuestionIDs) +
		sizeTime(d.InsertedAt) +
		sizeTime(d.UpdatedAt)
}

func (documentMUS) Marshal(d Document, bs []byte) int {
	n := ord.String.Marshal(d.ChatID, bs)
	n += marshalTime(d.UploadedAt, bs[n:])
	n += ord.String.Marshal(d.DocID, bs[n:])
	n += ord.String.Marshal(d.FileName, bs[n:])
	n += ord.String.Marshal(d.BlobKey, bs[n:])
	n += ord.String.Marshal(d.FileType, bs[n:])
	n += varint.Int.Marshal(int(d.Status), bs[n:])
	n += ord.String.Marshal(d.Error, bs[n:])
	n += ord.String.Marshal(d.Note, bs[n:])
	n += marshalIDs(d.MissingQuestionIDs, bs[n:])
	n += marshalTime(d.InsertedAt, bs[n:])
	n += marshalTime(d.UpdatedAt, bs[n:])
	return n
}

func (documentMUS) Unmarshal(bs []byte) (d Document, n int, err error) {
	var m int
	if d.ChatID, n, err = ord.String.Unmarshal(bs); err != nil {
		return
	}
	if d.UploadedAt, m, err = unmarshalTime(bs[n:]); err != nil {
		return d, n + m, err
	}
	n += m
	if d.DocID, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return d, n + m, err
	}
	n += m
	if d.FileName, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return d, n + m, err
	}
	n += m
	if d.BlobKey, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return d, n + m, err
	}
	n += m
	if d.FileType, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return d, n + m, err
	}
	n += m
	var status int
	if status, m, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return d, n + m, err
	}
	n += m
	d.Status = Status(status)
	if d.Error, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return d, n + m, err
	}
	n += m
	if d.Note, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return d, n + m, err
	}
	n += m
	if d.MissingQuestionIDs, m, err = unmarshalIDs(bs[n:]); err != nil {
		return d, n + m, err
	}
	n += m
	if d.InsertedAt, m, err = unmarshalTime(bs[n:]); err != nil {
		return d, n + m, err
	}
	n += m
	if d.UpdatedAt, m, err = unmarshalTime(bs[n:]); err != nil {
		return d, n + m, err
	}
	n += m
	return d, n, nil
}

type pointMUS struct{}

func (pointMUS) Size(p ChunkPoint) int {
	return ord.String.Size(p.ID) +
		sizeVector(p.Vector) +
		ord.String.Size(p.Payload.Text) +
		ord.String.Size(p.Payload.DocumentID) +
		ord.String.Size(p.Payload.ChatID) +
		ord.String.Size(p.Payload.BlobKey) +
		ord.String.Size(p.Payload.FileName) +
		varint.Int.Size(p.Payload.PageNumber) +
		varint.Int.Size(p.Payload.ChunkIndex)
}

func (pointMUS) Marshal(p ChunkPoint, bs []byte) int {
	n := ord.String.Marshal(p.ID, bs)
	n += marshalVector(p.Vector, bs[n:])
	n += ord.String.Marshal(p.Payload.Text, bs[n:])
	n += ord.String.Marshal(p.Payload.DocumentID, bs[n:])
	n += ord.String.Marshal(p.Payload.ChatID, bs[n:])
	n += ord.String.Marshal(p.Payload.BlobKey, bs[n:])
	n += ord.String.Marshal(p.Payload.FileName, bs[n:])
	n += varint.Int.Marshal(p.Payload.PageNumber, bs[n:])
	n += varint.Int.Marshal(p.Payload.ChunkIndex, bs[n:])
	return n
}

func (pointMUS) Unmarshal(bs []byte) (p ChunkPoint, n int, err error) {
	var m int
	if p.ID, n, err = ord.String.Unmarshal(bs); err != nil {
		return
	}
	if p.Vector, m, err = unmarshalVector(bs[n:]); err != nil {
		return p, n + m, err
	}
	n += m
	if p.Payload.Text, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return p, n + m, err
	}
	n += m
	if p.Payload.DocumentID, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return p, n + m, err
	}
	n += m
	if p.Payload.ChatID, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return p, n + m, err
	}
	n += m
	if p.Payload.BlobKey, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return p, n + m, err
	}
	n += m
	if p.Payload.FileName, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return p, n + m, err
	}
	n += m
	if p.Payload.PageNumber, m, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return p, n + m, err
	}
	n += m
	if p.Payload.ChunkIndex, m, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return p, n + m, err
	}
	n += m
	return p, n, nil
}

type questionMUS struct{}

func (questionMUS) Size(q EvaluationQuestion) int {
	return varint.Uint64.Size(uint64(q.Id)) +
		ord.String.Size(q.Text) +
		ord.String.Size(q.CategoryID) +
		ord.String.Size(q.OwnerID) +
		sizeTime(q.InsertedAt)
}

func (questionMUS) Marshal(q EvaluationQuestion, bs []byte) int {
	n := varint.Uint64.Marshal(uint64(q.Id), bs)
	n += ord.String.Marshal(q.Text, bs[n:])
	n += ord.String.Marshal(q.CategoryID, bs[n:])
	n += ord.String.Marshal(q.OwnerID, bs[n:])
	n += marshalTime(q.InsertedAt, bs[n:])
	return n
}

func (questionMUS) Unmarshal(bs []byte) (q EvaluationQuestion, n int, err error) {
	var m int
	var id uint64
	if id, n, err = varint.Uint64.Unmarshal(bs); err != nil {
		return
	}
	q.Id = ID(id)
	if q.Text, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return q, n + m, err
	}
	n += m
	if q.CategoryID, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return q, n + m, err
	}
	n += m
	if q.OwnerID, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return q, n + m, err
	}
	n += m
	if q.InsertedAt, m, err = unmarshalTime(bs[n:]); err != nil {
		return q, n + m, err
	}
	n += m
	return q, n, nil
}

type sessionMUS struct{}

func (sessionMUS) Size(s ScoringSession) int {
	size := ord.String.Size(s.OwnerID) +
		sizeTime(s.CreatedAt) +
		varint.Int.Size(len(s.Answers))
	for _, a := range s.Answers {
		size += varint.Uint64.Size(uint64(a.QuestionID)) +
			varint.Int.Size(a.Answer) +
			ord.String.Size(a.Reasoning)
	}
	return size + sizeTime(s.InsertedAt) + sizeTime(s.UpdatedAt)
}

func (sessionMUS) Marshal(s ScoringSession, bs []byte) int {
	n := ord.String.Marshal(s.OwnerID, bs)
	n += marshalTime(s.CreatedAt, bs[n:])
	n += varint.Int.Marshal(len(s.Answers), bs[n:])
	for _, a := range s.Answers {
		n += varint.Uint64.Marshal(uint64(a.QuestionID), bs[n:])
		n += varint.Int.Marshal(a.Answer, bs[n:])
		n += ord.String.Marshal(a.Reasoning, bs[n:])
	}
	n += marshalTime(s.InsertedAt, bs[n:])
	n += marshalTime(s.UpdatedAt, bs[n:])
	return n
}

func (sessionMUS) Unmarshal(bs []byte) (s ScoringSession, n int, err error) {
	var m int
	if s.OwnerID, n, err = ord.String.Unmarshal(bs); err != nil {
		return
	}
	if s.CreatedAt, m, err = unmarshalTime(bs[n:]); err != nil {
		return s, n + m, err
	}
	n += m
	var count int
	if count, m, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return s, n + m, err
	}
	n += m
	if count > 0 {
		s.Answers = make([]QuestionAnswer, count)
		for i := range s.Answers {
			var id uint64
			if id, m, err = varint.Uint64.Unmarshal(bs[n:]); err != nil {
				return s, n + m, err
			}
			n += m
			s.Answers[i].QuestionID = ID(id)
			if s.Answers[i].Answer, m, err = varint.Int.Unmarshal(bs[n:]); err != nil {
				return s, n + m, err
			}
			n += m
			if s.Answers[i].Reasoning, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
				return s, n + m, err
			}
			n += m
		}
	}
	if s.InsertedAt, m, err = unmarshalTime(bs[n:]); err != nil {
		return s, n + m, err
	}
	n += m
	if s.UpdatedAt, m, err = unmarshalTime(bs[n:]); err != nil {
		return s, n + m, err
	}
	n += m
	return s, n, nil
}

type jobMUS struct{}

func (jobMUS) Size(j Job) int {
	size := ord.String.Size(j.DocID) +
		ord.String.Size(j.ChatID) +
		sizeTime(j.UploadedAt) +
		ord.String.Size(j.FileName) +
		ord.String.Size(j.BlobKey) +
		ord.String.Size(j.FileType) +
		ord.Bool.Size(j.Review != nil)
	if j.Review != nil {
		size += ord.String.Size(j.Review.OwnerID) + sizeTime(j.Review.SessionCreatedAt)
	}
	return size + varint.Int.Size(j.Attempts) + sizeTime(j.EnqueuedAt)
}

func (jobMUS) Marshal(j Job, bs []byte) int {
	n := ord.String.Marshal(j.DocID, bs)
	n += ord.String.Marshal(j.ChatID, bs[n:])
	n += marshalTime(j.UploadedAt, bs[n:])
	n += ord.String.Marshal(j.FileName, bs[n:])
	n += ord.String.Marshal(j.BlobKey, bs[n:])
	n += ord.String.Marshal(j.FileType, bs[n:])
	n += ord.Bool.Marshal(j.Review != nil, bs[n:])
	if j.Review != nil {
		n += ord.String.Marshal(j.Review.OwnerID, bs[n:])
		n += marshalTime(j.Review.SessionCreatedAt, bs[n:])
	}
	n += varint.Int.Marshal(j.Attempts, bs[n:])
	n += marshalTime(j.EnqueuedAt, bs[n:])
	return n
}

func (jobMUS) Unmarshal(bs []byte) (j Job, n int, err error) {
	var m int
	if j.DocID, n, err = ord.String.Unmarshal(bs); err != nil {
		return
	}
	if j.ChatID, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return j, n + m, err
	}
	n += m
	if j.UploadedAt, m, err = unmarshalTime(bs[n:]); err != nil {
		return j, n + m, err
	}
	n += m
	if j.FileName, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return j, n + m, err
	}
	n += m
	if j.BlobKey, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return j, n + m, err
	}
	n += m
	if j.FileType, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return j, n + m, err
	}
	n += m
	var hasReview bool
	if hasReview, m, err = ord.Bool.Unmarshal(bs[n:]); err != nil {
		return j, n + m, err
	}
	n += m
	if hasReview {
		j.Review = &ReviewContext{}
		if j.Review.OwnerID, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
			return j, n + m, err
		}
		n += m
		if j.Review.SessionCreatedAt, m, err = unmarshalTime(bs[n:]); err != nil {
			return j, n + m, err
		}
		n += m
	}
	if j.Attempts, m, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return j, n + m, err
	}
	n += m
	if j.EnqueuedAt, m, err = unmarshalTime(bs[n:]); err != nil {
		return j, n + m, err
	}
	n += m
	return j, n, nil
}
