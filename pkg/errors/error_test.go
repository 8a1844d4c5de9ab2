package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/suite"
)

type ErrorTestSuite struct {
	suite.Suite
}

func TestErrorSuite(t *testing.T) {
	suite.Run(t, new(ErrorTestSuite))
}

func (suite *ErrorTestSuite) TestNewError() {
	err := New(ErrCodeInvalidSymbol, "symbol must not be empty")
	suite.NotNil(err)
	suite.Equal(ErrCodeInvalidSymbol, err.Code)
	suite.Equal("symbol must not be empty", err.Message)
	suite.Nil(err.Cause)
}

func (suite *ErrorTestSuite) TestNewfError() {
	err := Newf(ErrCodeBarsFetchFailed, "failed to fetch bars for %s", "AAPL")
	suite.NotNil(err)
	suite.Equal(ErrCodeBarsFetchFailed, err.Code)
	suite.Equal("failed to fetch bars for AAPL", err.Message)
	suite.Nil(err.Cause)
}

func (suite *ErrorTestSuite) TestWrapError() {
	cause := errors.New("connection refused")
	err := Wrap(ErrCodeStreamDialFailed, "failed to open stream", cause)
	suite.NotNil(err)
	suite.Equal(ErrCodeStreamDialFailed, err.Code)
	suite.Equal("failed to open stream", err.Message)
	suite.Equal(cause, err.Cause)
}

func (suite *ErrorTestSuite) TestWrapfError() {
	cause := errors.New("connection refused")
	err := Wrapf(ErrCodeSnapshotFetchFailed, cause, "failed to refresh snapshots for %d symbols", 3)
	suite.NotNil(err)
	suite.Equal(ErrCodeSnapshotFetchFailed, err.Code)
	suite.Equal("failed to refresh snapshots for 3 symbols", err.Message)
	suite.Equal(cause, err.Cause)
}

func (suite *ErrorTestSuite) TestErrorString() {
	err := New(ErrCodeInvalidParameter, "invalid parameter")
	suite.Equal("[100] invalid parameter", err.Error())
}

func (suite *ErrorTestSuite) TestErrorStringWithCause() {
	cause := errors.New("underlying error")
	err := Wrap(ErrCodeDataNotFound, "data not found", cause)
	suite.Equal("[200] data not found: underlying error", err.Error())
}

func (suite *ErrorTestSuite) TestUnwrap() {
	cause := errors.New("underlying error")
	err := Wrap(ErrCodeDataNotFound, "data not found", cause)
	suite.Equal(cause, err.Unwrap())
}

func (suite *ErrorTestSuite) TestUnwrapNil() {
	err := New(ErrCodeInvalidParameter, "invalid parameter")
	suite.Nil(err.Unwrap())
}

func (suite *ErrorTestSuite) TestGetCode() {
	err := New(ErrCodeStreamAuthFailed, "authentication failed")
	suite.Equal(ErrCodeStreamAuthFailed, GetCode(err))
}

func (suite *ErrorTestSuite) TestGetCodeFromWrapped() {
	cause := New(ErrCodeDataNotFound, "data not found")
	err := fmt.Errorf("outer: %w", cause)
	suite.Equal(ErrCodeDataNotFound, GetCode(err))
}

func (suite *ErrorTestSuite) TestGetCodeFromPlainError() {
	err := errors.New("plain error")
	suite.Equal(ErrCodeUnknown, GetCode(err))
}

func (suite *ErrorTestSuite) TestHasCode() {
	err := New(ErrCodeStreamPolicyRejected, "origin rejected")
	suite.True(HasCode(err, ErrCodeStreamPolicyRejected))
	suite.False(HasCode(err, ErrCodeStreamAuthFailed))
}
