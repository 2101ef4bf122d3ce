package generate

import (
	"context"
	"fmt"
	"strings"

	"github.com/kevinmichaelchen/gh-portfolio/internal/llm"
	"github.com/kevinmichaelchen/gh-portfolio/internal/models"
)

const (
	GPTName          = "gpt"
	gptLabel         = "GPT-4o"
	gptReadmeExcerpt = 200
	gptMaxTokens     = 2000
	gptTemperature   = 0.7
)

const gptSystemPrompt = "당신은 전문적인 포트폴리오 작성자입니다. GitHub 데이터를 분석하여 개인화된 포트폴리오를 생성합니다."

// GPT renders the concise template and sends it with a system message.
type GPT struct {
	llm Completer
}

func NewGPT(c Completer) *GPT {
	return &GPT{llm: c}
}

func (g *GPT) Name() string  { return GPTName }
func (g *GPT) Model() string { return g.llm.Model() }
func (g *GPT) Label() string { return gptLabel }

func (g *GPT) Complete(ctx context.Context, prompt string) (string, error) {
	return g.llm.Complete(ctx, llm.Request{
		System:      gptSystemPrompt,
		Prompt:      prompt,
		MaxTokens:   gptMaxTokens,
		Temperature: gptTemperature,
	})
}

func (g *GPT) Render(p models.Payload) string {
	u := p.User
	name := u.DisplayName()

	var b strings.Builder
	fmt.Fprintf(&b, `
당신은 전문적인 포트폴리오 작성자입니다. 다음 GitHub 사용자 데이터를 분석하여 개인화된 포트폴리오를 생성해주세요.

사용자 정보:
- 이름: %s
- 바이오: %s
- 팔로워: %d명
- 팔로잉: %d명
- Public Repository: %d개

주요 프로젝트들:
`, name, orFallback(u.Bio, "정보 없음"), u.Followers, u.Following, u.PublicRepos)

	for i, repo := range TopRepositories(p) {
		hasReadme := "없음"
		if repo.HasReadme {
			hasReadme = "있음"
		}
		fmt.Fprintf(&b, `
%d. %s
   - 설명: %s
   - 언어: %s
   - 스타: %d개
   - 포크: %d개
   - README: %s
`, i+1, repo.Name,
			orFallback(repo.Description, "설명 없음"),
			orFallback(repo.Language, "언어 정보 없음"),
			repo.Stars, repo.Forks, hasReadme)
		if excerpt := readmeExcerpt(repo, gptReadmeExcerpt); excerpt != "" {
			fmt.Fprintf(&b, "   - README 내용: %s\n", excerpt)
		}
	}

	fmt.Fprintf(&b, `
위 정보를 바탕으로 다음 형식으로 포트폴리오를 생성해주세요:

# %s의 포트폴리오

## 👋 소개
[사용자의 바이오와 GitHub 활동을 바탕으로 한 개인 소개]

## 🚀 주요 기술 스택
[사용된 프로그래밍 언어들을 분석하여 기술 스택 정리]

## 💼 주요 프로젝트
[가장 인상적인 프로젝트들을 선별하여 상세 설명]

## 📊 GitHub 통계
[팔로워, 팔로잉, Repository 수 등 통계 정보]

## 🎯 관심사 및 전문 분야
[README 파일과 프로젝트 분석을 바탕으로 한 전문 분야]

## 📈 성장 과정
[프로젝트 생성 날짜와 활동 패턴을 분석한 성장 과정]

## 🔗 연락처
- GitHub: https://github.com/%s
- 이메일: %s

위 형식으로 한국어로 포트폴리오를 작성해주세요. 각 섹션은 구체적이고 개인화된 내용으로 작성해주세요.
`, name, u.Login, orFallback(u.Email, "연락처 정보 없음"))

	return b.String()
}
