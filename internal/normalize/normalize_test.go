package normalize

import (
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitMulti(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"empty", "", []string{}},
		{"only separators", " , · ,", []string{}},
		{"commas", "서울 강남구, 경기 성남시", []string{"서울 강남구", "경기 성남시"}},
		{"mid dot", "신입·경력", []string{"신입", "경력"}},
		{"mixed with sentinel", "Backend, Frontend·etc.", []string{"Backend", "Frontend"}},
		{"korean sentinel", "웹개발, 외", []string{"웹개발"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SplitMulti(tt.in)
			assert.NotNil(t, got)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseSectorField(t *testing.T) {
	t.Run("english marker", func(t *testing.T) {
		sectors, date := ParseSectorField("IT, Software (updated 24/03/15)")
		assert.Equal(t, []string{"IT", "Software"}, sectors)
		require.NotNil(t, date)
		assert.Equal(t, time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), *date)
	})

	t.Run("korean marker without parentheses", func(t *testing.T) {
		sectors, date := ParseSectorField("백엔드/서버개발, 웹개발 등록 23/12/01")
		assert.Equal(t, []string{"백엔드/서버개발", "웹개발"}, sectors)
		require.NotNil(t, date)
		assert.Equal(t, "2023-12-01", FormatDate(date))
	})

	t.Run("no marker", func(t *testing.T) {
		sectors, date := ParseSectorField("IT, Software")
		assert.Equal(t, []string{"IT", "Software"}, sectors)
		assert.Nil(t, date)
	})

	t.Run("malformed marker is left alone", func(t *testing.T) {
		sectors, date := ParseSectorField("IT (updated 2024/03/15)")
		assert.Equal(t, []string{"IT (updated 2024/03/15)"}, sectors)
		assert.Nil(t, date)
	})

	t.Run("impossible date is left alone", func(t *testing.T) {
		sectors, date := ParseSectorField("IT (updated 24/13/45)")
		assert.Equal(t, []string{"IT (updated 24/13/45)"}, sectors)
		assert.Nil(t, date)
	})
}

func TestLinkHash(t *testing.T) {
	a := LinkHash("https://www.saramin.co.kr/zf_user/jobs/relay/view?rec_idx=1")
	b := LinkHash("  https://www.saramin.co.kr/zf_user/jobs/relay/view?rec_idx=1 ")
	c := LinkHash("https://www.saramin.co.kr/zf_user/jobs/relay/view?rec_idx=2")

	assert.Len(t, a, 64)
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestNormalize(t *testing.T) {
	rec, err := Normalize(RawRecord{
		"회사명":  "(주)잡코리아",
		"제목":   " 백엔드 개발자 ",
		"링크":   "https://example.com/jobs/1",
		"지역":   "서울 강남구, 서울 서초구",
		"경력":   "신입·경력",
		"학력":   "대졸(4년제)↑",
		"고용형태": "정규직, 계약직",
		"마감일":  "~ 03/31(일)",
		"직무분야": "백엔드, 서버 (수정 24/03/15)",
		"연봉정보": "3,500만원",
	})
	require.NoError(t, err)

	assert.Equal(t, "(주)잡코리아", rec.Company)
	assert.Equal(t, "백엔드 개발자", rec.Title)
	assert.Equal(t, LinkHash("https://example.com/jobs/1"), rec.LinkHash)
	assert.Equal(t, []string{"서울 강남구", "서울 서초구"}, rec.Locations)
	assert.Equal(t, []string{"신입", "경력"}, rec.ExperienceLevels)
	assert.Equal(t, []string{"정규직", "계약직"}, rec.EmploymentTypes)
	assert.Equal(t, "정규직", rec.EmploymentType)
	assert.Equal(t, []string{"백엔드", "서버"}, rec.Sectors)
	assert.Equal(t, "2024-03-15", FormatDate(rec.LastModified))
	assert.Equal(t, "3,500만원", rec.Salary)
}

func TestNormalize_MissingFields(t *testing.T) {
	_, err := Normalize(RawRecord{"title": "x", "link": "y"})
	assert.True(t, errors.Is(err, ErrMissingField))

	_, err = Normalize(RawRecord{"company": "c", "title": "x"})
	assert.True(t, errors.Is(err, ErrMissingField))
	assert.Contains(t, err.Error(), "link")
}

func TestNormalize_EmptyMultiValues(t *testing.T) {
	rec, err := Normalize(RawRecord{"company": "c", "title": "t", "link": "l"})
	require.NoError(t, err)
	assert.Empty(t, rec.Locations)
	assert.NotNil(t, rec.Locations)
	assert.Empty(t, rec.EmploymentType)
	assert.Nil(t, rec.LastModified)
}
