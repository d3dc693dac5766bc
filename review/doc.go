// Package review scores evaluation questions against a chat's indexed
// documents. For each question it retrieves the most similar chunks,
// asks the chat model for a closed-set label grounded in those chunks
// only, and maps the label to a discrete score. Questions the model
// cannot answer from the retrieved text land in an unanswerable set
// instead of being guessed.
package review
