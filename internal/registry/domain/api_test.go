package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	api := Default()
	require.Equal(t, uint16(0), api.ClientLimit)
	require.Empty(t, api.ProtectedPaths)
	require.Empty(t, api.UnprotectedPaths)
}

func TestApi_Equal(t *testing.T) {
	a := Api{ClientLimit: 1, ProtectedPaths: []string{"/a", "/a"}}

	require.True(t, a.Equal(Api{ClientLimit: 1, ProtectedPaths: []string{"/a", "/a"}, UnprotectedPaths: []string{}}))
	require.False(t, a.Equal(Api{ClientLimit: 2, ProtectedPaths: []string{"/a", "/a"}}))
	require.False(t, a.Equal(Api{ClientLimit: 1, ProtectedPaths: []string{"/a"}}), "duplicates are significant")
	require.False(t, a.Equal(Api{ClientLimit: 1, UnprotectedPaths: []string{"/a", "/a"}}))
}

func TestApi_CloneIsIndependent(t *testing.T) {
	a := Api{ClientLimit: 4, ProtectedPaths: []string{"/x"}}
	b := a.Clone()
	b.ProtectedPaths[0] = "/changed"

	require.Equal(t, "/x", a.ProtectedPaths[0])
	require.NotNil(t, b.UnprotectedPaths)
}

func TestValidateName(t *testing.T) {
	require.NoError(t, ValidateName("svc"))
	require.NoError(t, ValidateName(" "))
	require.True(t, errors.Is(ValidateName(""), ErrInvalidName))
}

func TestErrors_Matching(t *testing.T) {
	exists := error(&AlreadyExistsError{Name: "svc"})
	require.True(t, IsAlreadyExists(exists))
	require.Equal(t, "api with name svc already exists", exists.Error())

	cause := errors.New("disk full")
	storage := error(&StorageError{Op: "flush", Err: cause})
	require.True(t, IsStorageError(storage))
	require.ErrorIs(t, storage, cause)
	require.False(t, IsDecodeError(storage))

	decode := error(&DecodeError{Reason: "bad"})
	require.True(t, IsDecodeError(decode))
	require.False(t, IsAlreadyExists(decode))
}
