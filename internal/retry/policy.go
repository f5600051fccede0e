package retry

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	repoerrors "github.com/temirov/forksync/internal/repos/errors"
)

const (
	// DefaultMaxRetries is the retry budget applied when none is configured.
	DefaultMaxRetries = 3
	// DefaultBaseDelay is the delay before the first retry.
	DefaultBaseDelay = time.Second
	// DefaultMaxDelay caps every computed delay.
	DefaultMaxDelay = 30 * time.Second
	// DefaultJitter is the randomization factor applied to each delay.
	DefaultJitter = 0.5

	backoffMultiplierConstant         = 2.0
	retryingMessageConstant           = "retrying after recoverable failure"
	givingUpMessageConstant           = "retries exhausted"
	interruptedMessageConstant        = "retry wait interrupted"
	operationFieldConstant            = "operation"
	attemptFieldConstant              = "attempt"
	retriesFieldConstant              = "retries"
	delayFieldConstant                = "delay"
	classificationFieldConstant       = "classification"
	recoverableClassificationConstant = "recoverable"
	fatalClassificationConstant       = "fatal"
)

// ErrOperationNotConfigured indicates Execute was called without an operation.
var ErrOperationNotConfigured = errors.New("retry operation not configured")

// Classification decides whether a failure is worth another attempt.
type Classification int

// Failure classifications.
const (
	ClassificationFatal Classification = iota
	ClassificationRecoverable
)

// String returns the classification name used in logs.
func (classification Classification) String() string {
	if classification == ClassificationRecoverable {
		return recoverableClassificationConstant
	}
	return fatalClassificationConstant
}

// Classifier maps an operation failure to a Classification.
type Classifier func(err error) Classification

// NetworkClassifier treats NetworkRecoverableError as recoverable and everything else as fatal.
func NetworkClassifier(err error) Classification {
	if repoerrors.IsRecoverable(err) {
		return ClassificationRecoverable
	}
	return ClassificationFatal
}

// Sleeper waits between attempts. Implementations return the context error when interrupted.
type Sleeper interface {
	Sleep(executionContext context.Context, delay time.Duration) error
}

// TimerSleeper waits on a real timer.
type TimerSleeper struct{}

// Sleep blocks for delay or until the context ends.
func (TimerSleeper) Sleep(executionContext context.Context, delay time.Duration) error {
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-executionContext.Done():
		return executionContext.Err()
	case <-timer.C:
		return nil
	}
}

// Policy retries recoverable failures with exponential backoff and jitter.
type Policy struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	Jitter     float64
	Classifier Classifier
	Sleeper    Sleeper
	Logger     *zap.Logger
}

// Result reports how many times the operation ran.
type Result struct {
	Attempts    int             `json:"attempts" yaml:"attempts"`
	Retries     int             `json:"retries" yaml:"retries"`
	Delays      []time.Duration `json:"delays,omitempty" yaml:"delays,omitempty"`
	Exhausted   bool            `json:"exhausted,omitempty" yaml:"exhausted,omitempty"`
	Interrupted bool            `json:"interrupted,omitempty" yaml:"interrupted,omitempty"`
}

// DefaultPolicy returns a policy with the default budget and delays.
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries: DefaultMaxRetries,
		BaseDelay:  DefaultBaseDelay,
		MaxDelay:   DefaultMaxDelay,
		Jitter:     DefaultJitter,
		Classifier: NetworkClassifier,
		Sleeper:    TimerSleeper{},
		Logger:     zap.NewNop(),
	}
}

// Execute runs operation until it succeeds, fails fatally, exhausts the retry
// budget, or the context ends while waiting. The last failure is returned unchanged.
func (policy Policy) Execute(executionContext context.Context, operationName string, operation func(context.Context) error) (Result, error) {
	result := Result{}
	if operation == nil {
		return result, ErrOperationNotConfigured
	}
	normalized := policy.normalized()
	schedule := normalized.schedule()

	for {
		result.Attempts++
		operationError := operation(executionContext)
		if operationError == nil {
			return result, nil
		}

		classification := normalized.Classifier(operationError)
		if classification != ClassificationRecoverable {
			return result, operationError
		}
		if result.Retries >= normalized.MaxRetries {
			result.Exhausted = true
			normalized.Logger.Warn(givingUpMessageConstant,
				zap.String(operationFieldConstant, operationName),
				zap.Int(attemptFieldConstant, result.Attempts),
				zap.Int(retriesFieldConstant, result.Retries),
				zap.Error(operationError),
			)
			return result, operationError
		}

		delay := normalized.capDelay(schedule.NextBackOff())
		normalized.Logger.Warn(retryingMessageConstant,
			zap.String(operationFieldConstant, operationName),
			zap.Int(attemptFieldConstant, result.Attempts),
			zap.Int(retriesFieldConstant, result.Retries),
			zap.Duration(delayFieldConstant, delay),
			zap.Stringer(classificationFieldConstant, classification),
			zap.Error(operationError),
		)
		if sleepError := normalized.Sleeper.Sleep(executionContext, delay); sleepError != nil {
			result.Interrupted = true
			normalized.Logger.Info(interruptedMessageConstant, zap.String(operationFieldConstant, operationName), zap.Error(sleepError))
			return result, operationError
		}
		result.Retries++
		result.Delays = append(result.Delays, delay)
	}
}

func (policy Policy) normalized() Policy {
	if policy.MaxRetries < 0 {
		policy.MaxRetries = 0
	}
	if policy.BaseDelay <= 0 {
		policy.BaseDelay = DefaultBaseDelay
	}
	if policy.MaxDelay < policy.BaseDelay {
		policy.MaxDelay = policy.BaseDelay
	}
	if policy.Jitter < 0 || policy.Jitter >= 1 {
		policy.Jitter = DefaultJitter
	}
	if policy.Classifier == nil {
		policy.Classifier = NetworkClassifier
	}
	if policy.Sleeper == nil {
		policy.Sleeper = TimerSleeper{}
	}
	if policy.Logger == nil {
		policy.Logger = zap.NewNop()
	}
	return policy
}

func (policy Policy) schedule() *backoff.ExponentialBackOff {
	schedule := backoff.NewExponentialBackOff()
	schedule.InitialInterval = policy.BaseDelay
	schedule.MaxInterval = policy.MaxDelay
	schedule.Multiplier = backoffMultiplierConstant
	schedule.RandomizationFactor = policy.Jitter
	schedule.MaxElapsedTime = 0
	schedule.Reset()
	return schedule
}

// capDelay keeps jittered delays inside [0, MaxDelay].
func (policy Policy) capDelay(delay time.Duration) time.Duration {
	if delay == backoff.Stop || delay < 0 {
		return policy.MaxDelay
	}
	if delay > policy.MaxDelay {
		return policy.MaxDelay
	}
	return delay
}
