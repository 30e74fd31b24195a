// Package services hosts cross-cutting helpers shared by the pipeline's
// external-service integrations: the error taxonomy used for retry and
// failure classification, and context annotation for phase and episode
// attribution in logs.
package services
